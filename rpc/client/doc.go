// Package client implements the tkv client session: a connected binding
// to one storage node with typed methods for every RPC operation.
//
// The package focuses on:
//   - The shared buffer bridge: each session owns a single 2 MiB frame
//     buffer reused for every call (rewind-write-send-load-read), so no
//     per-call allocation happens on the request path
//   - Fail-fast semantics: after Disconnect the handle is zeroed and every
//     call returns NotConnected without touching the transport
//   - The multi-object batch protocol: order-preserving, per-item status,
//     transparently split into frame-sized RPCs with results merged back
//     into the caller's descriptors in place
//   - Lazy table iteration as a restartable forward-only sequence
//
// Concurrency: a Session and its buffer are single-threaded by design and
// carry no internal locking. Use one session per goroutine; distinct
// sessions are fully independent.
//
// Key Components:
//
//   - Session: Connect/Disconnect plus Read, Write, Remove,
//     IncrementInt64, CreateTable, DropTable, GetTableId, Ping, ProxyPing
//     and GetMetrics. Precondition rejections come back as a typed
//     *wire.Error together with the object's current version.
//
//   - MultiReadObject/MultiWriteObject/MultiRemoveObject: mutable batch
//     descriptors, updated in place by MultiRead/MultiWrite/MultiRemove.
//
//   - TableIterator: page-at-a-time enumeration of one table.
package client
