// Package strategy implements the selection policies the router can be
// configured with:
//
//   - Round Robin: cycles through the healthy members of a pool, driven by a
//     per-pool cursor the caller owns
//   - Least Connections: picks the member with the fewest routed requests,
//     first minimal member wins
//
// Policies are pure functions of the Snapshot they are given. The router is
// responsible for refreshing health and for advancing cursors and counters.
package strategy
