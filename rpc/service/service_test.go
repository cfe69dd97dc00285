package service

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/tkv/lib/engine"
	"github.com/ValentinKolb/tkv/rpc/wire"
)

// newRequest marshals a request frame starting with a zero handle.
func newRequest(fill func(b *wire.Buffer)) []byte {
	b := wire.NewBufferSize(64 * 1024)
	b.PutUint64(0)
	if fill != nil {
		fill(b)
	}
	if b.Err() != nil {
		panic(b.Err())
	}
	return b.Bytes()
}

// createTable creates a table through the dispatcher and returns its id.
func createTable(t *testing.T, s *Service, name string) uint64 {
	t.Helper()
	resp := wire.View(s.Dispatch(wire.OpCreateTable, newRequest(func(b *wire.Buffer) {
		b.PutUint32(1).PutString0(name)
	})))
	if st := resp.Status(); st != wire.StatusOK {
		t.Fatalf("createTable failed: %v", st)
	}
	return resp.Uint64()
}

func TestDispatchUnknownOpcode(t *testing.T) {
	s := New(engine.New())
	id := createTable(t, s, "test")

	req := newRequest(func(b *wire.Buffer) {
		b.PutUint64(id).PutBytes32([]byte("key")).PutRejectRules(nil)
	})
	reqCopy := append([]byte(nil), req...)

	out := s.Dispatch(wire.Opcode(0xbeef), req)

	// Response is exactly the 4-byte status, nothing else
	if len(out) != 4 {
		t.Errorf("expected a bare status response, got %d bytes", len(out))
	}
	if st := wire.View(out).Status(); st != wire.StatusUnimplementedRequest {
		t.Errorf("expected StatusUnimplementedRequest, got %v", st)
	}

	// No handler ran: the request frame is untouched
	if !bytes.Equal(req, reqCopy) {
		t.Error("dispatch of an unknown opcode mutated the request frame")
	}
}

func TestPingEchoesNonce(t *testing.T) {
	s := New(engine.New())

	for _, nonce := range []uint64{0, 1, 99999, 0xffffffffffffffff} {
		out := wire.View(s.Dispatch(wire.OpPing, newRequest(func(b *wire.Buffer) {
			b.PutUint64(nonce)
		})))
		if st := out.Status(); st != wire.StatusOK {
			t.Fatalf("ping failed: %v", st)
		}
		if echoed := out.Uint64(); echoed != nonce {
			t.Errorf("nonce %x came back as %x", nonce, echoed)
		}
	}
}

func TestObjectOperations(t *testing.T) {
	s := New(engine.New())
	id := createTable(t, s, "objects")

	t.Run("WriteThenRead", func(t *testing.T) {
		out := wire.View(s.Dispatch(wire.OpWrite, newRequest(func(b *wire.Buffer) {
			b.PutUint64(id).PutBytes32([]byte("key")).PutBytes32([]byte("value")).PutRejectRules(nil)
		})))
		if st := out.Status(); st != wire.StatusOK {
			t.Fatalf("write failed: %v", st)
		}
		version := out.Uint64()
		if version == 0 {
			t.Fatal("write must assign a nonzero version")
		}

		out = wire.View(s.Dispatch(wire.OpRead, newRequest(func(b *wire.Buffer) {
			b.PutUint64(id).PutBytes32([]byte("key")).PutRejectRules(nil)
		})))
		if st := out.Status(); st != wire.StatusOK {
			t.Fatalf("read failed: %v", st)
		}
		if got := out.Uint64(); got != version {
			t.Errorf("read version %d, expected %d", got, version)
		}
		if got := out.Bytes32(); !bytes.Equal(got, []byte("value")) {
			t.Errorf("read value %q", got)
		}
	})

	t.Run("ReadMissing", func(t *testing.T) {
		out := wire.View(s.Dispatch(wire.OpRead, newRequest(func(b *wire.Buffer) {
			b.PutUint64(id).PutBytes32([]byte("missing")).PutRejectRules(nil)
		})))
		if st := out.Status(); st != wire.StatusObjectDoesntExist {
			t.Fatalf("expected StatusObjectDoesntExist, got %v", st)
		}
		if version := out.Uint64(); version != 0 {
			t.Errorf("missing object must report version 0, got %d", version)
		}
	})

	t.Run("RemoveAbsentIsNoOp", func(t *testing.T) {
		out := wire.View(s.Dispatch(wire.OpRemove, newRequest(func(b *wire.Buffer) {
			b.PutUint64(id).PutBytes32([]byte("absent")).PutRejectRules(nil)
		})))
		if st := out.Status(); st != wire.StatusOK {
			t.Fatalf("remove of absent key must succeed, got %v", st)
		}
		if version := out.Uint64(); version != 0 {
			t.Errorf("expected version 0, got %d", version)
		}
	})

	t.Run("ConditionalWriteRejected", func(t *testing.T) {
		out := wire.View(s.Dispatch(wire.OpWrite, newRequest(func(b *wire.Buffer) {
			b.PutUint64(id).PutBytes32([]byte("never")).PutBytes32([]byte("x")).
				PutRejectRules(&wire.RejectRules{DoesntExist: true})
		})))
		if st := out.Status(); st != wire.StatusObjectDoesntExist {
			t.Fatalf("expected StatusObjectDoesntExist, got %v", st)
		}
		if version := out.Uint64(); version != 0 {
			t.Errorf("expected version 0 for never-written key, got %d", version)
		}
	})

	t.Run("Increment", func(t *testing.T) {
		out := wire.View(s.Dispatch(wire.OpIncrementInt64, newRequest(func(b *wire.Buffer) {
			b.PutUint64(id).PutBytes32([]byte("counter")).PutInt64(-3).PutRejectRules(nil)
		})))
		if st := out.Status(); st != wire.StatusOK {
			t.Fatalf("increment failed: %v", st)
		}
		out.Uint64() // version
		if result := out.Int64(); result != -3 {
			t.Errorf("expected -3, got %d", result)
		}
	})
}

func TestTableOperations(t *testing.T) {
	s := New(engine.New())

	id := createTable(t, s, "ledger")
	if again := createTable(t, s, "ledger"); again != id {
		t.Errorf("createTable is not idempotent: %d then %d", id, again)
	}

	out := wire.View(s.Dispatch(wire.OpGetTableId, newRequest(func(b *wire.Buffer) {
		b.PutString0("ledger")
	})))
	if st := out.Status(); st != wire.StatusOK {
		t.Fatalf("getTableId failed: %v", st)
	}
	if got := out.Uint64(); got != id {
		t.Errorf("getTableId = %d, expected %d", got, id)
	}

	out = wire.View(s.Dispatch(wire.OpDropTable, newRequest(func(b *wire.Buffer) {
		b.PutString0("ledger")
	})))
	if st := out.Status(); st != wire.StatusOK {
		t.Fatalf("dropTable failed: %v", st)
	}

	out = wire.View(s.Dispatch(wire.OpGetTableId, newRequest(func(b *wire.Buffer) {
		b.PutString0("ledger")
	})))
	if st := out.Status(); st != wire.StatusTableDoesntExist {
		t.Errorf("expected StatusTableDoesntExist after drop, got %v", st)
	}
}

func TestEnumerateHandler(t *testing.T) {
	s := New(engine.New())
	id := createTable(t, s, "scan")

	for _, k := range []string{"b", "c", "a"} {
		s.Dispatch(wire.OpWrite, newRequest(func(b *wire.Buffer) {
			b.PutUint64(id).PutBytes32([]byte(k)).PutBytes32([]byte("v-" + k)).PutRejectRules(nil)
		}))
	}

	out := wire.View(s.Dispatch(wire.OpEnumerate, newRequest(func(b *wire.Buffer) {
		b.PutUint64(id).PutBytes32(nil)
	})))
	if st := out.Status(); st != wire.StatusOK {
		t.Fatalf("enumerate failed: %v", st)
	}
	count := out.Uint32()
	if count != 3 {
		t.Fatalf("expected 3 items, got %d", count)
	}
	for _, expected := range []string{"a", "b", "c"} {
		key := out.Bytes32()
		value := out.Bytes32()
		version := out.Uint64()
		if string(key) != expected || !bytes.Equal(value, []byte("v-"+expected)) || version == 0 {
			t.Errorf("unexpected item (%q, %q, %d)", key, value, version)
		}
	}
	if out.Err() != nil {
		t.Fatalf("failed to decode enumerate response: %v", out.Err())
	}
}

func TestGetMetrics(t *testing.T) {
	s := New(engine.New())

	// Generate some traffic first
	s.Dispatch(wire.OpPing, newRequest(func(b *wire.Buffer) { b.PutUint64(1) }))

	out := wire.View(s.Dispatch(wire.OpGetMetrics, newRequest(nil)))
	if st := out.Status(); st != wire.StatusOK {
		t.Fatalf("getMetrics failed: %v", st)
	}
	blob := out.Bytes32()
	if out.Err() != nil {
		t.Fatalf("failed to decode metrics response: %v", out.Err())
	}
	if !strings.Contains(string(blob), "tkv_requests_total") {
		t.Errorf("metrics blob is missing the request counters:\n%s", blob)
	}
}

func TestProxyPingUnreachable(t *testing.T) {
	s := New(engine.New())

	timeout := 250 * time.Millisecond
	start := time.Now()
	out := wire.View(s.Dispatch(wire.OpProxyPing, newRequest(func(b *wire.Buffer) {
		b.PutUint64(uint64(timeout)).PutBytes32([]byte("127.0.0.1:1"))
	})))
	elapsed := time.Since(start)

	// An unreachable locator is a measurement, not an error
	if st := out.Status(); st != wire.StatusOK {
		t.Fatalf("proxyPing must not fail hard, got %v", st)
	}
	if replyNs := out.Int64(); replyNs != NoResponse {
		t.Errorf("expected the no-response sentinel, got %d", replyNs)
	}
	if elapsed > timeout+2*time.Second {
		t.Errorf("proxyPing took %v, far beyond the %v timeout", elapsed, timeout)
	}
}

func TestMalformedRequest(t *testing.T) {
	s := New(engine.New())

	// A read request truncated in the middle of the key
	b := wire.NewBufferSize(64)
	b.PutUint64(0).PutUint64(1).PutUint32(100)

	out := wire.View(s.Dispatch(wire.OpRead, b.Bytes()))
	if st := out.Status(); st != wire.StatusInternalError {
		t.Errorf("expected StatusInternalError for a truncated request, got %v", st)
	}
}
