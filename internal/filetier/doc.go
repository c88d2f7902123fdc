// Package filetier is the balancer in front of the file servers. Every
// upload goes to the next healthy file server in round-robin order and is
// reverse-proxied there unchanged; the chosen server is reported in the
// X-Backend-Server response header.
//
// Health is probed through the same prober and cache the router uses. With
// the default staleness of zero every upload re-probes the whole pool, so a
// server that went away is skipped on the very next request.
package filetier
