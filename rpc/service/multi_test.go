package service

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/ValentinKolb/tkv/lib/engine"
	"github.com/ValentinKolb/tkv/rpc/wire"
)

func TestMultiWriteOneBadItem(t *testing.T) {
	s := New(engine.New())
	id := createTable(t, s, "batch")

	const n = 8
	const bad = 3 // this item carries an unsatisfiable precondition

	out := wire.View(s.Dispatch(wire.OpMultiWrite, newRequest(func(b *wire.Buffer) {
		b.PutUint32(n)
		for i := 0; i < n; i++ {
			key := []byte(fmt.Sprintf("key-%d", i))
			b.PutUint64(id).PutBytes32(key).PutBytes32([]byte("value"))
			if i == bad {
				b.PutRejectRules(&wire.RejectRules{DoesntExist: true})
			} else {
				b.PutRejectRules(nil)
			}
		}
	})))

	if st := out.Status(); st != wire.StatusOK {
		t.Fatalf("batch failed as a whole: %v", st)
	}
	if count := out.Uint32(); count != n {
		t.Fatalf("expected %d item results, got %d", n, count)
	}

	for i := 0; i < n; i++ {
		st := out.Status()
		version := out.Uint64()
		if i == bad {
			if st != wire.StatusObjectDoesntExist {
				t.Errorf("item %d: expected StatusObjectDoesntExist, got %v", i, st)
			}
			if version != 0 {
				t.Errorf("item %d: expected version 0, got %d", i, version)
			}
		} else {
			if st != wire.StatusOK {
				t.Errorf("item %d: expected success, got %v", i, st)
			}
			if version == 0 {
				t.Errorf("item %d: missing version", i)
			}
		}
	}
	if out.Err() != nil {
		t.Fatalf("failed to decode batch response: %v", out.Err())
	}
}

func TestMultiReadMixedResults(t *testing.T) {
	s := New(engine.New())
	id := createTable(t, s, "batch")

	s.Dispatch(wire.OpWrite, newRequest(func(b *wire.Buffer) {
		b.PutUint64(id).PutBytes32([]byte("present")).PutBytes32([]byte("hello")).PutRejectRules(nil)
	}))

	out := wire.View(s.Dispatch(wire.OpMultiRead, newRequest(func(b *wire.Buffer) {
		b.PutUint32(3)
		b.PutUint64(id).PutBytes32([]byte("present")).PutRejectRules(nil)
		b.PutUint64(id).PutBytes32([]byte("missing")).PutRejectRules(nil)
		b.PutUint64(9999).PutBytes32([]byte("present")).PutRejectRules(nil) // bad table
	})))

	if st := out.Status(); st != wire.StatusOK {
		t.Fatalf("batch failed as a whole: %v", st)
	}
	if count := out.Uint32(); count != 3 {
		t.Fatalf("expected 3 item results, got %d", count)
	}

	// Item 0: hit, value present
	if st := out.Status(); st != wire.StatusOK {
		t.Fatalf("item 0: expected success, got %v", st)
	}
	out.Uint64() // version
	if value := out.Bytes32(); !bytes.Equal(value, []byte("hello")) {
		t.Errorf("item 0: value %q", value)
	}

	// Item 1: miss, no value field
	if st := out.Status(); st != wire.StatusObjectDoesntExist {
		t.Errorf("item 1: expected StatusObjectDoesntExist, got %v", st)
	}
	if version := out.Uint64(); version != 0 {
		t.Errorf("item 1: expected version 0, got %d", version)
	}

	// Item 2: unknown table, independent of the failures before it
	if st := out.Status(); st != wire.StatusTableDoesntExist {
		t.Errorf("item 2: expected StatusTableDoesntExist, got %v", st)
	}
	out.Uint64()

	if out.Err() != nil {
		t.Fatalf("failed to decode batch response: %v", out.Err())
	}
}

func TestMultiReadTruncatedByResponseBudget(t *testing.T) {
	s := New(engine.New())
	id := createTable(t, s, "batch")

	// Three objects whose combined values cannot share one response frame
	value := bytes.Repeat([]byte("v"), 1<<20)
	for i := 0; i < 3; i++ {
		req := wire.NewBuffer()
		req.PutUint64(0).PutUint64(id).PutBytes32([]byte(fmt.Sprintf("big-%d", i))).PutBytes32(value).PutRejectRules(nil)
		if req.Err() != nil {
			t.Fatal(req.Err())
		}
		out := wire.View(s.Dispatch(wire.OpWrite, req.Bytes()))
		if st := out.Status(); st != wire.StatusOK {
			t.Fatalf("write %d failed: %v", i, st)
		}
	}

	out := wire.View(s.Dispatch(wire.OpMultiRead, newRequest(func(b *wire.Buffer) {
		b.PutUint32(3)
		for i := 0; i < 3; i++ {
			b.PutUint64(id).PutBytes32([]byte(fmt.Sprintf("big-%d", i))).PutRejectRules(nil)
		}
	})))

	if st := out.Status(); st != wire.StatusOK {
		t.Fatalf("batch failed as a whole: %v", st)
	}

	// The answer is a non-empty prefix, not an error and not all items
	count := out.Uint32()
	if count == 0 || count >= 3 {
		t.Fatalf("expected a truncated prefix of the batch, got %d of 3 items", count)
	}
	for i := uint32(0); i < count; i++ {
		if st := out.Status(); st != wire.StatusOK {
			t.Fatalf("item %d: expected success, got %v", i, st)
		}
		out.Uint64() // version
		if got := out.Bytes32(); !bytes.Equal(got, value) {
			t.Errorf("item %d: value mismatch (%d bytes)", i, len(got))
		}
	}
	if out.Err() != nil {
		t.Fatalf("failed to decode batch response: %v", out.Err())
	}
}

func TestMultiRemove(t *testing.T) {
	s := New(engine.New())
	id := createTable(t, s, "batch")

	for i := 0; i < 3; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		s.Dispatch(wire.OpWrite, newRequest(func(b *wire.Buffer) {
			b.PutUint64(id).PutBytes32(key).PutBytes32([]byte("x")).PutRejectRules(nil)
		}))
	}

	out := wire.View(s.Dispatch(wire.OpMultiRemove, newRequest(func(b *wire.Buffer) {
		b.PutUint32(4)
		for i := 0; i < 4; i++ { // key-3 never existed
			b.PutUint64(id).PutBytes32([]byte(fmt.Sprintf("key-%d", i))).PutRejectRules(nil)
		}
	})))

	if st := out.Status(); st != wire.StatusOK {
		t.Fatalf("batch failed as a whole: %v", st)
	}
	if count := out.Uint32(); count != 4 {
		t.Fatalf("expected 4 item results, got %d", count)
	}

	for i := 0; i < 4; i++ {
		st := out.Status()
		version := out.Uint64()
		if st != wire.StatusOK {
			t.Errorf("item %d: expected success, got %v", i, st)
		}
		if i < 3 && version == 0 {
			t.Errorf("item %d: expected the pre-deletion version", i)
		}
		if i == 3 && version != 0 {
			t.Errorf("item 3: remove of an absent key must report version 0, got %d", version)
		}
	}

	// The objects are gone
	for i := 0; i < 3; i++ {
		out := wire.View(s.Dispatch(wire.OpRead, newRequest(func(b *wire.Buffer) {
			b.PutUint64(id).PutBytes32([]byte(fmt.Sprintf("key-%d", i))).PutRejectRules(nil)
		})))
		if st := out.Status(); st != wire.StatusObjectDoesntExist {
			t.Errorf("key-%d still present after multi remove: %v", i, st)
		}
	}
}
