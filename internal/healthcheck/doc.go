// Package healthcheck probes backend liveness and caches the results.
//
// A probe is a GET against <instance>/health. A 200 inside the timeout marks
// the instance Active; anything else marks it Down with an infinite response
// time. Probes never return errors: failure lives in the InstanceHealth record.
package healthcheck
