package transport

import (
	"net"

	"github.com/ValentinKolb/tkv/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests.
// It is called by a server transport layer when a request frame is
// received, with the opcode from the frame envelope and the payload,
// and returns the response payload.
type ServerHandleFunc func(opcode uint64, req []byte) (resp []byte)

// IRPCServerTransport is the interface for the RPC server transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer.
	// The handler is called once per received frame, possibly from
	// multiple goroutines.
	RegisterHandler(handler ServerHandleFunc)
	// Listen binds the transport to its endpoint without accepting
	// connections yet. After Listen returns, Addr reports the bound
	// address (relevant when the endpoint uses port 0).
	Listen(config common.ServerConfig) error
	// Serve accepts connections until the transport is closed. It must
	// be called after Listen and blocks.
	Serve() error
	// Addr returns the bound listener address, nil before Listen
	Addr() net.Addr
	// Close stops accepting connections and closes the listener
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request with the given opcode to the server and
	// returns the response payload
	Send(opcode uint64, req []byte) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}
