// Package service implements the opcode dispatcher and the per-operation
// handlers of the tkv RPC protocol. It sits between the transport layer
// (which delivers raw request frames keyed by opcode) and the storage
// engine.
//
// The package focuses on:
//   - Closed switch-based dispatch over the Opcode enumeration; unknown
//     opcodes yield a bare UnimplementedRequest status without running any
//     handler
//   - Marshalling: every handler decodes its request fields from the frame
//     and encodes status-first responses, reusing pooled frame buffers
//   - Per-item independence for the multi-object operations
//   - Proxy pings that convert unreachable peers into a sentinel
//     measurement (-1) instead of a hard error
//
// Key Components:
//
//   - Service: the dispatcher. Stateless between calls; safe for
//     concurrent use since all state lives in the engine and the metrics
//     set.
//
//   - serviceMetrics: a VictoriaMetrics set with one request counter per
//     opcode, serialized in Prometheus text format by getMetrics.
//
//   - probe: the proxy-ping prober. Speaks the transport framing directly
//     over a short-lived connection with a caller-bounded deadline.
package service
