package client

import (
	"fmt"

	"github.com/ValentinKolb/tkv/rpc/common"
	"github.com/ValentinKolb/tkv/rpc/transport"
	"github.com/ValentinKolb/tkv/rpc/wire"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// NoResponse is the sentinel reply time (in nanoseconds) returned by
// ProxyPing when the probed node did not answer within the timeout.
const NoResponse = int64(-1)

// Session is a connected client binding to one storage node. It owns a
// single 2 MiB frame buffer that is reused for every call
// (rewind-write-send-load-read), so a session is NOT safe for concurrent
// use; distinct sessions are independent. After Disconnect every call
// fails fast with NotConnected.
type Session struct {
	config    common.ClientConfig
	transport transport.IRPCClientTransport
	buf       *wire.Buffer
	handle    uint64
	connected bool
}

// Connect establishes a session: it connects the transport, performs the
// connect handshake and stores the issued handle.
//
// Usage:
//
//	s, err := client.Connect(config, tcp.NewTCPClientTransport())
//	if err != nil {
//		return err
//	}
//	defer s.Disconnect()
func Connect(config common.ClientConfig, t transport.IRPCClientTransport) (*Session, error) {
	if err := t.Connect(config); err != nil {
		return nil, err
	}

	s := &Session{
		config:    config,
		transport: t,
		buf:       wire.NewBuffer(),
	}

	locator := ""
	if len(config.Transport.Endpoints) > 0 {
		locator = config.Transport.Endpoints[0]
	}

	// Connect handshake: locator and cluster name are length-prefixed AND
	// NUL-terminated, the trailing port field is kept for compatibility
	b := s.buf
	b.Reset()
	b.PutBytes32([]byte(locator)).PutString0("").
		PutBytes32([]byte(config.ClusterName)).PutString0("").
		PutUint32(0)
	if err := b.Err(); err != nil {
		t.Close()
		return nil, err
	}

	respBytes, err := t.Send(uint64(wire.OpConnect), b.Bytes())
	if err != nil {
		t.Close()
		return nil, err
	}
	if err := b.Load(respBytes); err != nil {
		t.Close()
		return nil, err
	}
	if st := b.Status(); st != wire.StatusOK {
		t.Close()
		return nil, wire.ErrorForStatus(st)
	}

	s.handle = b.Uint64()
	if err := b.Err(); err != nil {
		t.Close()
		return nil, err
	}
	s.connected = true

	Logger.Infof("Session connected with handle %d", s.handle)
	return s, nil
}

// Handle returns the session handle issued by the node, 0 after
// Disconnect.
func (s *Session) Handle() uint64 {
	return s.handle
}

// Disconnect invalidates the handle on the node and closes the transport.
// The session cannot be reused afterwards.
func (s *Session) Disconnect() error {
	if !s.connected {
		return wire.ErrorForStatus(wire.StatusNotConnected)
	}

	b := s.buf
	b.Reset()
	b.PutUint64(s.handle)
	respBytes, err := s.transport.Send(uint64(wire.OpDisconnect), b.Bytes())

	// The handle is zeroed regardless: a half-failed disconnect must not
	// leave a session that believes it is still connected
	s.handle = 0
	s.connected = false

	closeErr := s.transport.Close()
	if err != nil {
		return err
	}
	if err := b.Load(respBytes); err != nil {
		return err
	}
	if st := b.Status(); st != wire.StatusOK {
		return wire.ErrorForStatus(st)
	}
	return closeErr
}

// call runs one RPC through the shared buffer: reset, marshal the handle
// plus the request fields, send, load the response and leave the buffer
// positioned after the status field. The returned buffer is s.buf.
func (s *Session) call(op wire.Opcode, marshal func(b *wire.Buffer)) (*wire.Buffer, wire.Status, error) {
	if !s.connected {
		return nil, wire.StatusNotConnected, wire.ErrorForStatus(wire.StatusNotConnected)
	}

	b := s.buf
	b.Reset()
	b.PutUint64(s.handle)
	if marshal != nil {
		marshal(b)
	}
	if err := b.Err(); err != nil {
		return nil, wire.StatusInternalError, err
	}

	respBytes, err := s.transport.Send(uint64(op), b.Bytes())
	if err != nil {
		return nil, wire.StatusInternalError, fmt.Errorf("%v request failed: %w", op, err)
	}
	if err := b.Load(respBytes); err != nil {
		return nil, wire.StatusInternalError, err
	}

	st := b.Status()
	if err := b.Err(); err != nil {
		return nil, wire.StatusInternalError, err
	}
	return b, st, nil
}

// --------------------------------------------------------------------------
// Object operations
// --------------------------------------------------------------------------

// Read returns the value and current version of an object. On a
// precondition rejection or a missing object the error carries the wire
// status and the returned version is the object's current one (0 if it
// does not exist).
func (s *Session) Read(tableID uint64, key []byte, rules *wire.RejectRules) (value []byte, version uint64, err error) {
	b, st, err := s.call(wire.OpRead, func(b *wire.Buffer) {
		b.PutUint64(tableID).PutBytes32(key).PutRejectRules(rules)
	})
	if err != nil {
		return nil, 0, err
	}

	version = b.Uint64()
	if st != wire.StatusOK {
		return nil, version, wire.ErrorForStatus(st)
	}
	value = b.Bytes32()
	return value, version, b.Err()
}

// Write stores a value and returns the new version. On rejection the
// returned version is the current one and the error carries the status.
func (s *Session) Write(tableID uint64, key, value []byte, rules *wire.RejectRules) (version uint64, err error) {
	b, st, err := s.call(wire.OpWrite, func(b *wire.Buffer) {
		b.PutUint64(tableID).PutBytes32(key).PutBytes32(value).PutRejectRules(rules)
	})
	if err != nil {
		return 0, err
	}

	version = b.Uint64()
	if st != wire.StatusOK {
		return version, wire.ErrorForStatus(st)
	}
	return version, b.Err()
}

// Remove deletes an object and returns its version as of just before
// deletion (0 if it did not exist).
func (s *Session) Remove(tableID uint64, key []byte, rules *wire.RejectRules) (version uint64, err error) {
	b, st, err := s.call(wire.OpRemove, func(b *wire.Buffer) {
		b.PutUint64(tableID).PutBytes32(key).PutRejectRules(rules)
	})
	if err != nil {
		return 0, err
	}

	version = b.Uint64()
	if st != wire.StatusOK {
		return version, wire.ErrorForStatus(st)
	}
	return version, b.Err()
}

// IncrementInt64 atomically adds delta to the 8-byte integer at key and
// returns the resulting value. A missing object is created holding delta.
func (s *Session) IncrementInt64(tableID uint64, key []byte, delta int64, rules *wire.RejectRules) (result int64, version uint64, err error) {
	b, st, err := s.call(wire.OpIncrementInt64, func(b *wire.Buffer) {
		b.PutUint64(tableID).PutBytes32(key).PutInt64(delta).PutRejectRules(rules)
	})
	if err != nil {
		return 0, 0, err
	}

	version = b.Uint64()
	if st != wire.StatusOK {
		return 0, version, wire.ErrorForStatus(st)
	}
	result = b.Int64()
	return result, version, b.Err()
}

// --------------------------------------------------------------------------
// Table operations
// --------------------------------------------------------------------------

// CreateTable creates a table (idempotent per name) and returns its id.
// A serverSpan of 0 selects the default of 1.
func (s *Session) CreateTable(name string, serverSpan uint32) (uint64, error) {
	b, st, err := s.call(wire.OpCreateTable, func(b *wire.Buffer) {
		b.PutUint32(serverSpan).PutString0(name)
	})
	if err != nil {
		return 0, err
	}
	if st != wire.StatusOK {
		return 0, wire.ErrorForStatus(st)
	}
	id := b.Uint64()
	return id, b.Err()
}

// DropTable deletes a table and all its objects, a no-op for unknown
// names.
func (s *Session) DropTable(name string) error {
	_, st, err := s.call(wire.OpDropTable, func(b *wire.Buffer) {
		b.PutString0(name)
	})
	if err != nil {
		return err
	}
	if st != wire.StatusOK {
		return wire.ErrorForStatus(st)
	}
	return nil
}

// GetTableId resolves a table name to its id.
func (s *Session) GetTableId(name string) (uint64, error) {
	b, st, err := s.call(wire.OpGetTableId, func(b *wire.Buffer) {
		b.PutString0(name)
	})
	if err != nil {
		return 0, err
	}
	if st != wire.StatusOK {
		return 0, wire.ErrorForStatus(st)
	}
	id := b.Uint64()
	return id, b.Err()
}

// --------------------------------------------------------------------------
// Health probing and metrics
// --------------------------------------------------------------------------

// Ping sends a nonce and returns the node's echo. A mismatch indicates
// frame corruption in flight.
func (s *Session) Ping(nonce uint64) (uint64, error) {
	b, st, err := s.call(wire.OpPing, func(b *wire.Buffer) {
		b.PutUint64(nonce)
	})
	if err != nil {
		return 0, err
	}
	if st != wire.StatusOK {
		return 0, wire.ErrorForStatus(st)
	}
	echoed := b.Uint64()
	return echoed, b.Err()
}

// ProxyPing asks the connected node to ping another node at locator with
// the given timeout in nanoseconds. It returns the observed round-trip
// time in nanoseconds, or NoResponse when the node reports the target as
// unreachable. Unreachable targets are a measurement, not an error.
func (s *Session) ProxyPing(locator string, timeoutNs uint64) (int64, error) {
	b, st, err := s.call(wire.OpProxyPing, func(b *wire.Buffer) {
		b.PutUint64(timeoutNs).PutBytes32([]byte(locator))
	})
	if err != nil {
		return NoResponse, err
	}
	if st != wire.StatusOK {
		return NoResponse, wire.ErrorForStatus(st)
	}
	replyNs := b.Int64()
	return replyNs, b.Err()
}

// GetMetrics retrieves the node's metrics in Prometheus text format.
func (s *Session) GetMetrics() ([]byte, error) {
	b, st, err := s.call(wire.OpGetMetrics, nil)
	if err != nil {
		return nil, err
	}
	if st != wire.StatusOK {
		return nil, wire.ErrorForStatus(st)
	}
	blob := b.Bytes32()
	return blob, b.Err()
}
