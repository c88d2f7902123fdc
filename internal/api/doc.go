// Package api exposes the router over HTTP.
//
//	POST /route/{class}   pick an instance for a database, web or file request
//	GET  /probe?url=...   probe one instance now
//	GET  /stats           counters, health records and uptime
//	GET  /metrics         event metrics
//	GET  /healthz         liveness of the router itself
package api
