package server

import (
	"encoding/binary"
	"net"

	"github.com/ValentinKolb/tkv/lib/engine"
	"github.com/ValentinKolb/tkv/rpc/common"
	"github.com/ValentinKolb/tkv/rpc/service"
	"github.com/ValentinKolb/tkv/rpc/transport"
	"github.com/ValentinKolb/tkv/rpc/wire"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// Server is one storage node: it owns the engine, the service layer and
// the session registry, and wires them to a transport.
//
// Usage:
//
//	s := server.New(config, tcp.NewTCPDefaultServerTransport())
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
type Server struct {
	config    common.ServerConfig
	transport transport.IRPCServerTransport
	engine    *engine.Engine
	service   *service.Service
	sessions  *sessionRegistry
}

// New creates a storage node bound to the given transport.
func New(config common.ServerConfig, t transport.IRPCServerTransport) *Server {
	common.InitLoggers(config.LogLevel)

	e := engine.New()
	s := &Server{
		config:    config,
		transport: t,
		engine:    e,
		service:   service.New(e),
		sessions:  newSessionRegistry(),
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	t.RegisterHandler(s.handle)
	return s
}

// Listen binds the transport without accepting connections yet. Tests use
// it together with Addr to serve on an ephemeral port.
func (s *Server) Listen() error {
	return s.transport.Listen(s.config)
}

// Addr returns the bound transport address, nil before Listen.
func (s *Server) Addr() net.Addr {
	return s.transport.Addr()
}

// Serve starts the node. It binds the transport if Listen was not called
// yet and then blocks accepting connections.
func (s *Server) Serve() error {
	if s.transport.Addr() == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	return s.transport.Serve()
}

// Close stops the transport.
func (s *Server) Close() error {
	return s.transport.Close()
}

// --------------------------------------------------------------------------
// Request handling
// --------------------------------------------------------------------------

// handle is the transport callback. Connect and disconnect manage the
// session registry here; every other opcode must present a live handle in
// its first 8 bytes before it reaches the service dispatcher.
func (s *Server) handle(opcode uint64, req []byte) []byte {
	op := wire.Opcode(opcode)

	switch op {
	case wire.OpConnect:
		return s.handleConnect(req)
	case wire.OpDisconnect:
		return s.handleDisconnect(req)
	case wire.OpPing:
		// Liveness probes carry no session, proxy pings from peer nodes
		// arrive with handle 0
		return s.service.Dispatch(op, req)
	}

	if len(req) < 8 || !s.sessions.valid(binary.LittleEndian.Uint64(req[:8])) {
		return statusOnly(wire.StatusNotConnected)
	}

	return s.service.Dispatch(op, req)
}

// handleConnect parses
// [locatorLen:4][locator][NUL][clusterNameLen:4][clusterName][NUL][dpdkPort:4]
// and responds with [status:4][handle:8].
func (s *Server) handleConnect(req []byte) []byte {
	in := wire.View(req)
	locator := in.Bytes32()
	if in.String0() != "" { // the terminator after the locator
		return statusOnly(wire.StatusInternalError)
	}
	clusterName := in.Bytes32()
	if in.String0() != "" {
		return statusOnly(wire.StatusInternalError)
	}
	dpdkPort := in.Uint32()
	if in.Err() != nil {
		Logger.Warningf("Malformed connect request: %v", in.Err())
		return statusOnly(wire.StatusInternalError)
	}
	_ = dpdkPort // accepted for wire compatibility, kernel bypass is not supported

	if s.config.ClusterName != "" && string(clusterName) != s.config.ClusterName {
		Logger.Warningf("Rejected connect from %q: cluster name %q does not match %q",
			locator, clusterName, s.config.ClusterName)
		return statusOnly(wire.StatusInternalError)
	}

	handle := s.sessions.register(string(locator), string(clusterName))
	Logger.Infof("Session %d connected (locator %q, %d sessions)", handle, locator, s.sessions.size())

	resp := wire.NewBufferSize(12)
	resp.PutInt32(int32(wire.StatusOK)).PutUint64(handle)
	return resp.Bytes()
}

// handleDisconnect parses [handle:8] and invalidates the session.
func (s *Server) handleDisconnect(req []byte) []byte {
	in := wire.View(req)
	handle := in.Uint64()
	if in.Err() != nil {
		return statusOnly(wire.StatusInternalError)
	}

	if !s.sessions.drop(handle) {
		return statusOnly(wire.StatusNotConnected)
	}

	Logger.Infof("Session %d disconnected (%d sessions)", handle, s.sessions.size())
	return statusOnly(wire.StatusOK)
}

func statusOnly(st wire.Status) []byte {
	resp := wire.NewBufferSize(4)
	resp.PutInt32(int32(st))
	return resp.Bytes()
}
