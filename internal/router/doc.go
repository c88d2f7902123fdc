// Package router turns a service class into a backend address.
//
// A Router owns one lane per pool (cursor plus per-instance request counters)
// and a single selection policy fixed at construction. Database and Web
// requests go through the policy; File requests always resolve to the file
// tier endpoint, which does its own balancing.
package router
