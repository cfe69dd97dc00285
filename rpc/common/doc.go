// Package common provides configuration structures and logging utilities
// shared across the tkv client, server and transport packages.
//
// The package focuses on:
//   - Configuration structures for client and server components, with a
//     shared socket tuning block used by all transport implementations
//   - A custom logging implementation built on dragonboat's logger
//     facility, giving every package a named, level-filtered logger with
//     consistent formatting
//
// Key Components:
//
//   - ServerConfig: Configuration for storage nodes, covering the listen
//     endpoint, cluster name, request timeouts, worker limits and socket
//     options.
//
//   - ClientConfig: Configuration for client sessions, controlling
//     endpoints, connection pooling, timeouts and retry behavior.
//
//   - CreateLogger / InitLoggers: The logger factory and the level setup
//     for the "rpc", "transport/rpc" and "engine" loggers.
package common
