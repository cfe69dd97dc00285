// Package engine implements the in-memory storage engine behind the tkv
// RPC service: named tables holding versioned objects with conditional
// (RejectRules-guarded) reads, writes, removes and increments.
//
// The package focuses on:
//   - Lock-free concurrent access through xsync.MapOf with atomic
//     Compute-based read-modify-write, so precondition checks and
//     mutations are linearizable per key
//   - Strictly increasing object versions drawn from a per-table counter,
//     so a re-created key never observes a version it has seen before
//   - Defensive copying of keys and values on both sides of the API
//
// Key Components:
//
//   - Engine: the table registry. Table creation is idempotent per name;
//     dropping a table atomically discards all contained objects.
//
//   - RejectRules evaluation: precondition failures are reported as wire
//     statuses together with the object's current version (0 when the
//     object does not exist), never as panics.
//
//   - Enumerate: restartable forward-only iteration in lexicographic key
//     order, paged by a byte budget so responses fit one frame.
package engine
