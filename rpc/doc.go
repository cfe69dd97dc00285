// Package rpc provides the remote procedure call layer of the tKV key-value
// store. It acts as the communication layer between client sessions and
// storage nodes, enabling operations across network boundaries.
//
// The package is organized into several subpackages:
//
//   - wire: The binary frame codec, including the shared frame buffer,
//     opcodes, status codes and the reject-rules precondition encoding.
//
//   - common: Configuration structures and logging shared by clients
//     and servers.
//
//   - transport: Network communication abstractions with pluggable
//     implementations (TCP, Unix sockets).
//
//   - service: The operation dispatcher running on a storage node,
//     mapping opcodes to key-value, table and diagnostic handlers.
//
//   - server: The storage node itself, combining the in-memory engine,
//     the service dispatcher and the session registry behind a transport.
//
//   - client: The client session, batched multi-operations and table
//     iteration on top of a single shared frame buffer.
package rpc
