package service

import (
	"sync"

	"github.com/ValentinKolb/tkv/lib/engine"
	"github.com/ValentinKolb/tkv/rpc/wire"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// Service executes the key-value operations against the storage engine.
// It is stateless between calls; all state lives in the engine and the
// metrics set. Safe for concurrent use.
type Service struct {
	engine  *engine.Engine
	metrics *serviceMetrics

	// bufPool holds response frame buffers, shared across calls
	bufPool sync.Pool
}

// New creates a service bound to the given engine.
func New(e *engine.Engine) *Service {
	return &Service{
		engine:  e,
		metrics: newServiceMetrics(),
		bufPool: sync.Pool{
			New: func() interface{} { return wire.NewBuffer() },
		},
	}
}

// Dispatch routes a request frame to the handler for its opcode and
// returns the response frame. Unknown opcodes yield a response holding
// only StatusUnimplementedRequest; no handler runs and the request frame
// is not touched.
func (s *Service) Dispatch(op wire.Opcode, req []byte) []byte {
	s.metrics.countRequest(op)

	in := wire.View(req)
	in.Uint64() // skip the session handle, validated by the server layer

	resp := s.bufPool.Get().(*wire.Buffer)
	defer s.bufPool.Put(resp)
	resp.Reset()

	switch op {
	case wire.OpRead:
		s.handleRead(in, resp)
	case wire.OpWrite:
		s.handleWrite(in, resp)
	case wire.OpRemove:
		s.handleRemove(in, resp)
	case wire.OpIncrementInt64:
		s.handleIncrementInt64(in, resp)
	case wire.OpCreateTable:
		s.handleCreateTable(in, resp)
	case wire.OpDropTable:
		s.handleDropTable(in, resp)
	case wire.OpGetTableId:
		s.handleGetTableId(in, resp)
	case wire.OpEnumerate:
		s.handleEnumerate(in, resp)
	case wire.OpMultiRead:
		s.handleMultiRead(in, resp)
	case wire.OpMultiWrite:
		s.handleMultiWrite(in, resp)
	case wire.OpMultiRemove:
		s.handleMultiRemove(in, resp)
	case wire.OpPing:
		s.handlePing(in, resp)
	case wire.OpProxyPing:
		s.handleProxyPing(in, resp)
	case wire.OpGetMetrics:
		s.handleGetMetrics(in, resp)
	default:
		resp.Reset()
		resp.PutInt32(int32(wire.StatusUnimplementedRequest))
	}

	// A malformed request detected while marshalling the response leaves
	// the frame in an undefined state, replace it wholesale
	if resp.Err() != nil {
		Logger.Warningf("Failed to handle %v request: %v", op, resp.Err())
		resp.Reset()
		resp.PutInt32(int32(wire.StatusInternalError))
	}

	// Copy out of the pooled buffer
	out := make([]byte, resp.Len())
	copy(out, resp.Bytes())
	return out
}
