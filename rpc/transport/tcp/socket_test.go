package tcp

import (
	"net"
	"testing"

	"github.com/ValentinKolb/tkv/rpc/common"
	"golang.org/x/sys/unix"
)

// tcpTestConn returns a connected TCP client socket.
func tcpTestConn(t *testing.T) *net.TCPConn {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, _ := ln.Accept()
		accepted <- conn
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if peer := <-accepted; peer != nil {
		t.Cleanup(func() { peer.Close() })
	}

	return conn.(*net.TCPConn)
}

// lingerOf reads SO_LINGER off the socket.
func lingerOf(t *testing.T, conn *net.TCPConn) unix.Linger {
	t.Helper()

	raw, err := conn.SyscallConn()
	if err != nil {
		t.Fatalf("failed to access the raw socket: %v", err)
	}
	var l *unix.Linger
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		l, sockErr = unix.GetsockoptLinger(int(fd), unix.SOL_SOCKET, unix.SO_LINGER)
	}); err != nil {
		t.Fatalf("control failed: %v", err)
	}
	if sockErr != nil {
		t.Fatalf("getsockopt failed: %v", sockErr)
	}
	return *l
}

func TestLingerUntouchedByDefault(t *testing.T) {
	conn := tcpTestConn(t)

	// A linger of 0 seconds would turn every close into a connection
	// reset, so the zero config must leave SO_LINGER disabled
	if err := upgradeTCPConn(conn, common.SocketConfig{}); err != nil {
		t.Fatalf("upgrade failed: %v", err)
	}
	if l := lingerOf(t, conn); l.Onoff != 0 {
		t.Errorf("zero config enabled SO_LINGER (onoff=%d, linger=%d)", l.Onoff, l.Linger)
	}
}

func TestLingerApplied(t *testing.T) {
	conn := tcpTestConn(t)

	if err := upgradeTCPConn(conn, common.SocketConfig{TCPLingerSec: 3}); err != nil {
		t.Fatalf("upgrade failed: %v", err)
	}
	if l := lingerOf(t, conn); l.Onoff == 0 || l.Linger != 3 {
		t.Errorf("expected SO_LINGER enabled at 3s, got (onoff=%d, linger=%d)", l.Onoff, l.Linger)
	}
}
