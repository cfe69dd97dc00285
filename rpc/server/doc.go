// Package server implements the tkv storage node. It owns the in-memory
// engine, the service dispatcher and the session registry, and wires them
// to a transport implementation.
//
// The package focuses on:
//   - Session lifecycle: connect requests are parsed here and answered
//     with an opaque handle from the registry, disconnect invalidates it
//   - Handle validation: every non-connect request must present a live
//     handle before it reaches the service dispatcher, stale or zeroed
//     handles fail fast with NotConnected
//   - Transport wiring with a Listen/Serve split so tests can bind an
//     ephemeral port and read the chosen address
//
// Key Components:
//
//   - Server: the node. Construct with New(config, transport), then
//     Serve() (or Listen() + Serve() when the address matters).
//
//   - sessionRegistry: issues and validates the opaque session handles.
//     Handles start at 1, so a zeroed handle is never valid.
package server
