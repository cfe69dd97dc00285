package client

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/ValentinKolb/tkv/rpc/common"
	"github.com/ValentinKolb/tkv/rpc/server"
	"github.com/ValentinKolb/tkv/rpc/transport/tcp"
	"github.com/ValentinKolb/tkv/rpc/wire"
)

// startTestNode serves a node on an ephemeral port and returns its
// address.
func startTestNode(t *testing.T) string {
	t.Helper()

	srv := server.New(common.ServerConfig{
		Transport: common.ServerTransportConfig{
			Endpoint:       "127.0.0.1:0",
			WorkersPerConn: 4,
		},
		ClusterName:   "test",
		TimeoutSecond: 10,
		LogLevel:      "error",
	}, tcp.NewTCPDefaultServerTransport())

	if err := srv.Listen(); err != nil {
		t.Fatalf("failed to bind test node: %v", err)
	}
	go srv.Serve()
	t.Cleanup(func() { srv.Close() })

	return srv.Addr().String()
}

func connectTestSession(t *testing.T, addr string) *Session {
	t.Helper()

	s, err := Connect(common.ClientConfig{
		Transport: common.ClientTransportConfig{
			Endpoints: []string{addr},
		},
		ClusterName:   "test",
		TimeoutSecond: 10,
		LogLevel:      "error",
	}, tcp.NewTCPClientTransport())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	return s
}

func TestSessionEndToEnd(t *testing.T) {
	addr := startTestNode(t)
	s := connectTestSession(t, addr)
	defer s.Disconnect()

	id, err := s.CreateTable("accounts", 1)
	if err != nil {
		t.Fatalf("createTable failed: %v", err)
	}

	t.Run("WriteReadRemove", func(t *testing.T) {
		v1, err := s.Write(id, []byte("alice"), []byte("100"), nil)
		if err != nil {
			t.Fatalf("write failed: %v", err)
		}

		value, version, err := s.Read(id, []byte("alice"), nil)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if !bytes.Equal(value, []byte("100")) || version != v1 {
			t.Errorf("read = (%q, %d), expected (100, %d)", value, version, v1)
		}

		removed, err := s.Remove(id, []byte("alice"), nil)
		if err != nil {
			t.Fatalf("remove failed: %v", err)
		}
		if removed != v1 {
			t.Errorf("remove reported version %d, expected %d", removed, v1)
		}

		if _, version, err := s.Read(id, []byte("alice"), nil); err == nil || version != 0 {
			t.Errorf("expected a miss at version 0, got (%v, %d)", err, version)
		}
	})

	t.Run("RejectionCarriesVersion", func(t *testing.T) {
		v, err := s.Write(id, []byte("bob"), []byte("x"), nil)
		if err != nil {
			t.Fatalf("write failed: %v", err)
		}

		version, err := s.Write(id, []byte("bob"), []byte("y"), &wire.RejectRules{Exists: true})
		if wire.StatusOf(err) != wire.StatusObjectExists {
			t.Errorf("expected StatusObjectExists, got %v", err)
		}
		if version != v {
			t.Errorf("rejection must report the current version %d, got %d", v, version)
		}
	})

	t.Run("Increment", func(t *testing.T) {
		result, _, err := s.IncrementInt64(id, []byte("hits"), 7, nil)
		if err != nil || result != 7 {
			t.Fatalf("increment = (%d, %v), expected (7, nil)", result, err)
		}
		result, _, err = s.IncrementInt64(id, []byte("hits"), -2, nil)
		if err != nil || result != 5 {
			t.Fatalf("increment = (%d, %v), expected (5, nil)", result, err)
		}
	})

	t.Run("TableLifecycle", func(t *testing.T) {
		resolved, err := s.GetTableId("accounts")
		if err != nil || resolved != id {
			t.Errorf("getTableId = (%d, %v), expected (%d, nil)", resolved, err, id)
		}

		if err := s.DropTable("scratch"); err != nil {
			t.Errorf("drop of an unknown table must be a no-op, got %v", err)
		}

		if _, err := s.GetTableId("scratch"); wire.StatusOf(err) != wire.StatusTableDoesntExist {
			t.Errorf("expected StatusTableDoesntExist, got %v", err)
		}
	})

	t.Run("PingNonces", func(t *testing.T) {
		for _, nonce := range []uint64{0, 42, 0xffffffffffffffff} {
			echoed, err := s.Ping(nonce)
			if err != nil {
				t.Fatalf("ping failed: %v", err)
			}
			if echoed != nonce {
				t.Errorf("nonce %x came back as %x", nonce, echoed)
			}
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		blob, err := s.GetMetrics()
		if err != nil {
			t.Fatalf("getMetrics failed: %v", err)
		}
		if !bytes.Contains(blob, []byte("tkv_requests_total")) {
			t.Errorf("metrics blob is missing the request counters:\n%s", blob)
		}
	})
}

func TestNotConnectedFailFast(t *testing.T) {
	addr := startTestNode(t)
	s := connectTestSession(t, addr)

	id, err := s.CreateTable("test", 1)
	if err != nil {
		t.Fatalf("createTable failed: %v", err)
	}

	if err := s.Disconnect(); err != nil {
		t.Fatalf("disconnect failed: %v", err)
	}
	if s.Handle() != 0 {
		t.Error("handle must be zeroed after disconnect")
	}

	start := time.Now()
	if _, _, err := s.Read(id, []byte("k"), nil); wire.StatusOf(err) != wire.StatusNotConnected {
		t.Errorf("expected StatusNotConnected, got %v", err)
	}
	if _, err := s.Write(id, []byte("k"), []byte("v"), nil); wire.StatusOf(err) != wire.StatusNotConnected {
		t.Errorf("expected StatusNotConnected, got %v", err)
	}
	if _, err := s.Ping(1); wire.StatusOf(err) != wire.StatusNotConnected {
		t.Errorf("expected StatusNotConnected, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("calls after disconnect must fail fast, took %v", elapsed)
	}
}

func TestStaleHandleRejected(t *testing.T) {
	addr := startTestNode(t)

	// Two sessions against one node; disconnecting the first must not
	// affect the second
	s1 := connectTestSession(t, addr)
	s2 := connectTestSession(t, addr)
	defer s2.Disconnect()

	if s1.Handle() == s2.Handle() {
		t.Fatal("sessions must get distinct handles")
	}

	if err := s1.Disconnect(); err != nil {
		t.Fatalf("disconnect failed: %v", err)
	}

	if _, err := s2.Ping(7); err != nil {
		t.Errorf("surviving session must keep working, got %v", err)
	}
}

func TestProxyPing(t *testing.T) {
	addrA := startTestNode(t)
	addrB := startTestNode(t)

	s := connectTestSession(t, addrA)
	defer s.Disconnect()

	t.Run("ReachablePeer", func(t *testing.T) {
		replyNs, err := s.ProxyPing(addrB, uint64(2*time.Second))
		if err != nil {
			t.Fatalf("proxyPing failed: %v", err)
		}
		if replyNs < 0 {
			t.Errorf("expected a measurement for a live peer, got %d", replyNs)
		}
	})

	t.Run("UnreachablePeer", func(t *testing.T) {
		timeout := 250 * time.Millisecond
		start := time.Now()
		replyNs, err := s.ProxyPing("127.0.0.1:1", uint64(timeout))
		elapsed := time.Since(start)

		if err != nil {
			t.Fatalf("an unreachable peer is a measurement, not an error: %v", err)
		}
		if replyNs != NoResponse {
			t.Errorf("expected the no-response sentinel, got %d", replyNs)
		}
		if elapsed > timeout+2*time.Second {
			t.Errorf("proxyPing took %v, far beyond the %v timeout", elapsed, timeout)
		}
	})
}

func TestMultiOpsEndToEnd(t *testing.T) {
	addr := startTestNode(t)
	s := connectTestSession(t, addr)
	defer s.Disconnect()

	id, err := s.CreateTable("batch", 1)
	if err != nil {
		t.Fatalf("createTable failed: %v", err)
	}

	const n = 100
	writes := make([]*MultiWriteObject, n)
	for i := range writes {
		writes[i] = &MultiWriteObject{
			TableID: id,
			Key:     []byte(fmt.Sprintf("key-%03d", i)),
			Value:   []byte(fmt.Sprintf("value-%03d", i)),
		}
	}

	if err := s.MultiWrite(writes); err != nil {
		t.Fatalf("multiWrite failed: %v", err)
	}
	for i, w := range writes {
		if w.Status != wire.StatusOK || w.Version == 0 {
			t.Fatalf("item %d: (%v, %d)", i, w.Status, w.Version)
		}
	}

	reads := make([]*MultiReadObject, n)
	for i := range reads {
		reads[i] = &MultiReadObject{TableID: id, Key: writes[i].Key}
	}
	if err := s.MultiRead(reads); err != nil {
		t.Fatalf("multiRead failed: %v", err)
	}
	for i, r := range reads {
		if r.Status != wire.StatusOK {
			t.Fatalf("item %d: %v", i, r.Status)
		}
		if !bytes.Equal(r.Value, writes[i].Value) || r.Version != writes[i].Version {
			t.Errorf("item %d: (%q, %d), expected (%q, %d)", i, r.Value, r.Version, writes[i].Value, writes[i].Version)
		}
	}

	removes := make([]*MultiRemoveObject, n)
	for i := range removes {
		removes[i] = &MultiRemoveObject{TableID: id, Key: writes[i].Key}
	}
	if err := s.MultiRemove(removes); err != nil {
		t.Fatalf("multiRemove failed: %v", err)
	}
	for i, r := range removes {
		if r.Status != wire.StatusOK || r.Version != writes[i].Version {
			t.Errorf("item %d: (%v, %d)", i, r.Status, r.Version)
		}
	}
}

func TestMultiWriteSplitsLargeBatches(t *testing.T) {
	addr := startTestNode(t)
	s := connectTestSession(t, addr)
	defer s.Disconnect()

	id, err := s.CreateTable("large", 1)
	if err != nil {
		t.Fatalf("createTable failed: %v", err)
	}

	// 24 values of 256 KiB cannot fit one 2 MiB frame, forcing at least
	// four underlying RPCs
	value := bytes.Repeat([]byte("x"), 256*1024)
	const n = 24
	writes := make([]*MultiWriteObject, n)
	for i := range writes {
		writes[i] = &MultiWriteObject{
			TableID: id,
			Key:     []byte(fmt.Sprintf("blob-%02d", i)),
			Value:   value,
		}
	}

	if err := s.MultiWrite(writes); err != nil {
		t.Fatalf("multiWrite failed: %v", err)
	}
	for i, w := range writes {
		if w.Status != wire.StatusOK {
			t.Fatalf("item %d: %v", i, w.Status)
		}
	}

	// Every object arrived intact
	for i := 0; i < n; i++ {
		got, _, err := s.Read(id, writes[i].Key, nil)
		if err != nil {
			t.Fatalf("read of blob-%02d failed: %v", i, err)
		}
		if !bytes.Equal(got, value) {
			t.Errorf("blob-%02d corrupted (%d bytes)", i, len(got))
		}
	}
}

func TestMultiReadSplitsLargeResponses(t *testing.T) {
	addr := startTestNode(t)
	s := connectTestSession(t, addr)
	defer s.Disconnect()

	id, err := s.CreateTable("large", 1)
	if err != nil {
		t.Fatalf("createTable failed: %v", err)
	}

	// The read requests are tiny and share one frame, but three 1 MiB
	// values cannot share one response frame: the node answers a prefix
	// per RPC and the session must resume transparently
	value := bytes.Repeat([]byte("y"), 1<<20)
	const n = 3
	for i := 0; i < n; i++ {
		if _, err := s.Write(id, []byte(fmt.Sprintf("big-%d", i)), value, nil); err != nil {
			t.Fatalf("write of big-%d failed: %v", i, err)
		}
	}

	reads := make([]*MultiReadObject, n)
	for i := range reads {
		reads[i] = &MultiReadObject{TableID: id, Key: []byte(fmt.Sprintf("big-%d", i))}
	}
	if err := s.MultiRead(reads); err != nil {
		t.Fatalf("multiRead failed: %v", err)
	}
	for i, r := range reads {
		if r.Status != wire.StatusOK {
			t.Fatalf("item %d: %v, expected success", i, r.Status)
		}
		if !bytes.Equal(r.Value, value) {
			t.Errorf("item %d corrupted (%d bytes)", i, len(r.Value))
		}
		if r.Version == 0 {
			t.Errorf("item %d missing its version", i)
		}
	}
}

func TestMultiWriteOneBadItemInOrder(t *testing.T) {
	addr := startTestNode(t)
	s := connectTestSession(t, addr)
	defer s.Disconnect()

	id, err := s.CreateTable("batch", 1)
	if err != nil {
		t.Fatalf("createTable failed: %v", err)
	}

	const n, bad = 10, 4
	writes := make([]*MultiWriteObject, n)
	for i := range writes {
		writes[i] = &MultiWriteObject{
			TableID: id,
			Key:     []byte(fmt.Sprintf("key-%d", i)),
			Value:   []byte("v"),
		}
		if i == bad {
			writes[i].RejectRules = &wire.RejectRules{DoesntExist: true}
		}
	}

	if err := s.MultiWrite(writes); err != nil {
		t.Fatalf("multiWrite failed: %v", err)
	}
	for i, w := range writes {
		if i == bad {
			if w.Status != wire.StatusObjectDoesntExist || w.Version != 0 {
				t.Errorf("item %d: (%v, %d), expected the rejection at version 0", i, w.Status, w.Version)
			}
		} else if w.Status != wire.StatusOK {
			t.Errorf("item %d: %v, expected success", i, w.Status)
		}
	}
}

func TestTableIterator(t *testing.T) {
	addr := startTestNode(t)
	s := connectTestSession(t, addr)
	defer s.Disconnect()

	id, err := s.CreateTable("scan", 1)
	if err != nil {
		t.Fatalf("createTable failed: %v", err)
	}
	for _, k := range []string{"b", "a", "c"} {
		if _, err := s.Write(id, []byte(k), []byte("value-"+k), nil); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	collect := func() []string {
		t.Helper()
		var keys []string
		it := s.Iterate(id)
		for it.Next() {
			item := it.Item()
			if !bytes.Equal(item.Value, append([]byte("value-"), item.Key...)) {
				t.Errorf("key %q paired with value %q", item.Key, item.Value)
			}
			if item.Version == 0 {
				t.Errorf("key %q missing its version", item.Key)
			}
			keys = append(keys, string(item.Key))
		}
		if err := it.Err(); err != nil {
			t.Fatalf("iteration failed: %v", err)
		}
		return keys
	}

	keys := collect()
	if fmt.Sprint(keys) != fmt.Sprint([]string{"a", "b", "c"}) {
		t.Errorf("iteration yielded %v, expected [a b c]", keys)
	}

	// Restartable: a fresh iterator re-enumerates from the start
	if again := collect(); fmt.Sprint(again) != fmt.Sprint(keys) {
		t.Errorf("fresh iteration yielded %v", again)
	}

	t.Run("EmptyTable", func(t *testing.T) {
		emptyID, err := s.CreateTable("empty", 1)
		if err != nil {
			t.Fatalf("createTable failed: %v", err)
		}
		it := s.Iterate(emptyID)
		if it.Next() {
			t.Error("iteration over an empty table yielded an item")
		}
		if err := it.Err(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
