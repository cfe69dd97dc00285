package service

import (
	"github.com/ValentinKolb/tkv/rpc/wire"
)

// The handlers below decode the request fields after the handle, run the
// operation against the engine and marshal the response. Every response
// starts with the 4-byte status; object operations always append the
// current version so callers can distinguish "rejected at version V" from
// "rejected, never existed" (version 0).

// badRequest replaces the response with a bare InternalError status after
// a request frame failed to parse.
func badRequest(resp *wire.Buffer) {
	resp.Reset()
	resp.PutInt32(int32(wire.StatusInternalError))
}

// --------------------------------------------------------------------------
// Object operations
// --------------------------------------------------------------------------

func (s *Service) handleRead(in, resp *wire.Buffer) {
	tableID := in.Uint64()
	key := in.Bytes32()
	rules := in.RejectRules()
	if in.Err() != nil {
		badRequest(resp)
		return
	}

	value, version, st := s.engine.Read(tableID, key, &rules)
	resp.PutInt32(int32(st)).PutUint64(version)
	if st == wire.StatusOK {
		resp.PutBytes32(value)
	}
}

func (s *Service) handleWrite(in, resp *wire.Buffer) {
	tableID := in.Uint64()
	key := in.Bytes32()
	value := in.Bytes32()
	rules := in.RejectRules()
	if in.Err() != nil {
		badRequest(resp)
		return
	}

	version, st := s.engine.Write(tableID, key, value, &rules)
	resp.PutInt32(int32(st)).PutUint64(version)
}

func (s *Service) handleRemove(in, resp *wire.Buffer) {
	tableID := in.Uint64()
	key := in.Bytes32()
	rules := in.RejectRules()
	if in.Err() != nil {
		badRequest(resp)
		return
	}

	version, st := s.engine.Remove(tableID, key, &rules)
	resp.PutInt32(int32(st)).PutUint64(version)
}

func (s *Service) handleIncrementInt64(in, resp *wire.Buffer) {
	tableID := in.Uint64()
	key := in.Bytes32()
	delta := in.Int64()
	rules := in.RejectRules()
	if in.Err() != nil {
		badRequest(resp)
		return
	}

	result, version, st := s.engine.IncrementInt64(tableID, key, delta, &rules)
	resp.PutInt32(int32(st)).PutUint64(version).PutInt64(result)
}

// --------------------------------------------------------------------------
// Table operations
// --------------------------------------------------------------------------

func (s *Service) handleCreateTable(in, resp *wire.Buffer) {
	serverSpan := in.Uint32()
	name := in.String0()
	if in.Err() != nil {
		badRequest(resp)
		return
	}

	id := s.engine.CreateTable(name, serverSpan)
	resp.PutInt32(int32(wire.StatusOK)).PutUint64(id)
}

func (s *Service) handleDropTable(in, resp *wire.Buffer) {
	name := in.String0()
	if in.Err() != nil {
		badRequest(resp)
		return
	}

	s.engine.DropTable(name)
	resp.PutInt32(int32(wire.StatusOK))
}

func (s *Service) handleGetTableId(in, resp *wire.Buffer) {
	name := in.String0()
	if in.Err() != nil {
		badRequest(resp)
		return
	}

	id, st := s.engine.GetTableId(name)
	resp.PutInt32(int32(st))
	if st == wire.StatusOK {
		resp.PutUint64(id)
	}
}

// --------------------------------------------------------------------------
// Enumeration
// --------------------------------------------------------------------------

// enumOverhead is the fixed part of an enumerate response (status + count).
const enumOverhead = 4 + 4

func (s *Service) handleEnumerate(in, resp *wire.Buffer) {
	tableID := in.Uint64()
	startKey := in.Bytes32()
	if in.Err() != nil {
		badRequest(resp)
		return
	}

	items, st := s.engine.Enumerate(tableID, startKey, wire.BufferCapacity-enumOverhead)
	if st != wire.StatusOK {
		resp.PutInt32(int32(st))
		return
	}

	resp.PutInt32(int32(wire.StatusOK)).PutUint32(uint32(len(items)))
	for i := range items {
		resp.PutBytes32(items[i].Key).PutBytes32(items[i].Value).PutUint64(items[i].Version)
	}
}

// --------------------------------------------------------------------------
// Multi-object operations
// --------------------------------------------------------------------------

// The multi handlers run every item independently: an item failure is
// recorded in that item's status and never aborts its siblings. The outer
// status is OK whenever the batch itself was parseable.

// multiOverhead is the fixed part of a multi-op response (status + count).
const multiOverhead = 4 + 4

func (s *Service) handleMultiRead(in, resp *wire.Buffer) {
	count := in.Uint32()
	if in.Err() != nil {
		badRequest(resp)
		return
	}

	// The request is split by its own size, but read values can make the
	// response far larger than the request. Results are collected first
	// (the answered count precedes the items on the wire) and items past
	// the frame budget stay unanswered; the session resumes with them in
	// a follow-up request.
	type readResult struct {
		value   []byte
		version uint64
		status  wire.Status
	}

	budget := wire.BufferCapacity - multiOverhead
	used := 0
	results := make([]readResult, 0, count)
	for i := uint32(0); i < count; i++ {
		tableID := in.Uint64()
		key := in.Bytes32()
		rules := in.RejectRules()
		if in.Err() != nil {
			badRequest(resp)
			return
		}

		value, version, st := s.engine.Read(tableID, key, &rules)
		itemSize := 4 + 8
		if st == wire.StatusOK {
			itemSize += 4 + len(value)
		}
		if used+itemSize > budget {
			break
		}
		used += itemSize
		results = append(results, readResult{value, version, st})
	}

	resp.PutInt32(int32(wire.StatusOK)).PutUint32(uint32(len(results)))
	for i := range results {
		resp.PutInt32(int32(results[i].status)).PutUint64(results[i].version)
		if results[i].status == wire.StatusOK {
			resp.PutBytes32(results[i].value)
		}
	}
}

func (s *Service) handleMultiWrite(in, resp *wire.Buffer) {
	count := in.Uint32()
	if in.Err() != nil {
		badRequest(resp)
		return
	}

	resp.PutInt32(int32(wire.StatusOK)).PutUint32(count)
	for i := uint32(0); i < count; i++ {
		tableID := in.Uint64()
		key := in.Bytes32()
		value := in.Bytes32()
		rules := in.RejectRules()
		if in.Err() != nil {
			badRequest(resp)
			return
		}

		version, st := s.engine.Write(tableID, key, value, &rules)
		resp.PutInt32(int32(st)).PutUint64(version)
	}
}

func (s *Service) handleMultiRemove(in, resp *wire.Buffer) {
	count := in.Uint32()
	if in.Err() != nil {
		badRequest(resp)
		return
	}

	resp.PutInt32(int32(wire.StatusOK)).PutUint32(count)
	for i := uint32(0); i < count; i++ {
		tableID := in.Uint64()
		key := in.Bytes32()
		rules := in.RejectRules()
		if in.Err() != nil {
			badRequest(resp)
			return
		}

		version, st := s.engine.Remove(tableID, key, &rules)
		resp.PutInt32(int32(st)).PutUint64(version)
	}
}

// --------------------------------------------------------------------------
// Health probing and metrics
// --------------------------------------------------------------------------

func (s *Service) handlePing(in, resp *wire.Buffer) {
	nonce := in.Uint64()
	if in.Err() != nil {
		badRequest(resp)
		return
	}

	// The nonce is echoed bit-exactly, a mismatch on the caller side
	// indicates frame corruption
	resp.PutInt32(int32(wire.StatusOK)).PutUint64(nonce)
}

func (s *Service) handleProxyPing(in, resp *wire.Buffer) {
	timeoutNs := in.Uint64()
	locator := in.Bytes32()
	if in.Err() != nil {
		badRequest(resp)
		return
	}

	replyNs := s.probe(string(locator), timeoutNs)
	resp.PutInt32(int32(wire.StatusOK)).PutInt64(replyNs)
}

func (s *Service) handleGetMetrics(in, resp *wire.Buffer) {
	blob := s.metrics.snapshot()
	resp.PutInt32(int32(wire.StatusOK)).PutBytes32(blob)
}
