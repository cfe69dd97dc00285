package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Shared transport tuning
// --------------------------------------------------------------------------

// SocketConfig holds socket-level tuning knobs shared by client and server.
// Zero values leave the operating system defaults in place.
type SocketConfig struct {
	// TCPNoDelay disables Nagle's algorithm (only relevant for tcp)
	TCPNoDelay bool
	// TCPKeepAliveSec enables keep-alive probes with the given period (tcp only)
	TCPKeepAliveSec int
	// TCPLingerSec sets the linger timeout on close, 0 leaves the default
	TCPLingerSec int
	// ReadBufferSize sets the kernel socket read buffer in bytes
	ReadBufferSize int
	// WriteBufferSize sets the kernel socket write buffer in bytes
	WriteBufferSize int
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerTransportConfig configures the listening side of the transport.
type ServerTransportConfig struct {
	// Endpoint is the address to listen on (host:port for tcp, a path for unix)
	Endpoint string
	// WorkersPerConn limits the number of concurrently processed requests
	// per client connection (minimum 1)
	WorkersPerConn int
	// Socket holds the socket tuning options
	Socket SocketConfig
}

// ServerConfig holds all configuration parameters for a storage node.
type ServerConfig struct {
	// Transport settings
	Transport ServerTransportConfig

	// ClusterName is checked against the name clients present on connect
	ClusterName string

	// TimeoutSecond is the per-request read/write deadline, 0 disables it
	TimeoutSecond int64

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Cluster Name", c.ClusterName)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Workers Per Conn", strconv.Itoa(c.Transport.WorkersPerConn))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	addSection("Socket")
	addField("TCP No Delay", fmt.Sprintf("%t", c.Transport.Socket.TCPNoDelay))
	addField("TCP Keep Alive", fmt.Sprintf("%d sec", c.Transport.Socket.TCPKeepAliveSec))
	addField("Read Buffer Size", strconv.Itoa(c.Transport.Socket.ReadBufferSize))
	addField("Write Buffer Size", strconv.Itoa(c.Transport.Socket.WriteBufferSize))

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientTransportConfig configures the connecting side of the transport.
type ClientTransportConfig struct {
	// Endpoints are the server addresses (host:port for tcp, paths for unix)
	Endpoints []string
	// ConnectionsPerEndpoint is the size of the connection pool per endpoint
	// (minimum 1)
	ConnectionsPerEndpoint int
	// RetryCount is the number of send attempts before giving up (minimum 1)
	RetryCount int
	// Socket holds the socket tuning options
	Socket SocketConfig
}

// ClientConfig holds all configuration parameters for a client session.
type ClientConfig struct {
	// Transport settings
	Transport ClientTransportConfig

	// ClusterName is presented to the server on connect
	ClusterName string

	// TimeoutSecond is the per-request timeout, 0 disables it
	TimeoutSecond int64

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Cluster Name", c.ClusterName)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(max(1, c.Transport.RetryCount)))
	addField("Connections Per Endpoint", strconv.Itoa(max(1, c.Transport.ConnectionsPerEndpoint)))

	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
