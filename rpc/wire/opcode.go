package wire

// Opcode identifies which RPC operation a frame encodes. The set is
// closed and known at build time; the dispatcher rejects anything else
// with StatusUnimplementedRequest.
type Opcode uint32

const (
	OpUnknown Opcode = iota

	// Session operations (handled by the server, not the service)

	OpConnect
	OpDisconnect

	// Object operations

	OpRead
	OpWrite
	OpRemove
	OpIncrementInt64

	// Table operations

	OpCreateTable
	OpDropTable
	OpGetTableId
	OpEnumerate

	// Multi-object operations

	OpMultiRead
	OpMultiWrite
	OpMultiRemove

	// Health and introspection

	OpPing
	OpProxyPing
	OpGetMetrics
)

// String returns the string representation of an Opcode.
func (op Opcode) String() string {
	switch op {
	case OpConnect:
		return "connect"
	case OpDisconnect:
		return "disconnect"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpIncrementInt64:
		return "incrementInt64"
	case OpCreateTable:
		return "createTable"
	case OpDropTable:
		return "dropTable"
	case OpGetTableId:
		return "getTableId"
	case OpEnumerate:
		return "enumerate"
	case OpMultiRead:
		return "multiRead"
	case OpMultiWrite:
		return "multiWrite"
	case OpMultiRemove:
		return "multiRemove"
	case OpPing:
		return "ping"
	case OpProxyPing:
		return "proxyPing"
	case OpGetMetrics:
		return "getMetrics"
	default:
		return "unknown"
	}
}
