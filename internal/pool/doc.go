// Package pool defines the service classes the router knows about and the
// fixed, ordered set of backend addresses that serves each of them.
package pool
