// Package backend wraps one upstream file server for the file tier: its
// reverse proxy, the number of requests currently in flight, and a moving
// average of how long it takes to answer.
package backend
