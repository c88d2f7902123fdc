// Package httpserver wraps net/http with address validation, graceful
// shutdown and the middleware shared by every service in this module.
package httpserver
