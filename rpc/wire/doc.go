// Package wire implements the binary frame format of the tkv RPC protocol.
// It defines the fixed-capacity frame buffer shared between a session and
// the service layer, the 12-byte RejectRules encoding, the closed Opcode
// enumeration and the status-code-to-error mapping.
//
// The package focuses on:
//   - A cursor-based Buffer with a strict rewind-before-write /
//     rewind-before-read contract and a sticky error for overflow and
//     truncated reads
//   - Little-endian encoding of all multi-byte integers
//   - Length-prefixed byte strings (no implicit NUL termination) plus
//     NUL-terminated names for table operations
//
// Key Components:
//
//   - Buffer: the reusable frame buffer. One buffer is allocated per
//     session and reused for every call; it is not safe for concurrent use.
//
//   - RejectRules: optimistic-concurrency preconditions with a canonical
//     12-byte encoding (all zero bytes mean "no preconditions").
//
//   - Status / Error: the closed status enumeration carried in the first
//     four bytes of every response, mapped 1:1 to error kinds.
//
//   - Opcode: the closed set of RPC operations.
package wire
