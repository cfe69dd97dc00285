// Package cmd implements the command-line interface for the tKV in-memory
// key-value store. It provides a hierarchical command structure with operations
// for running a storage node and interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value operations (read, write, remove, scan, etc.)
//   - serve: Commands for starting and configuring a tKV storage node
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See tkv -help for a list of all commands.
package cmd
