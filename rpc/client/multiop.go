package client

import (
	"github.com/ValentinKolb/tkv/rpc/wire"
)

// The multi-op protocol batches many keyed operations into as few RPCs as
// fit the 2 MiB frame. Descriptors are mutable result containers: each
// item's outcome is written back into the Status/Version (and Value for
// reads) fields of the same struct the caller supplied, in input order.
// Items are independent; one rejected item never aborts its siblings. A
// transport failure marks every not-yet-answered item of the affected
// batch with StatusInternalError and is also returned as an error.

// batchOverhead is the fixed request prefix of a multi op
// (8-byte handle + 4-byte item count).
const batchOverhead = 8 + 4

// MultiReadObject describes one read in a batch.
type MultiReadObject struct {
	TableID     uint64
	Key         []byte
	RejectRules *wire.RejectRules

	// Results, written in place
	Value   []byte
	Version uint64
	Status  wire.Status
}

func (o *MultiReadObject) requestSize() int {
	return 8 + 4 + len(o.Key) + wire.RejectRulesLen
}

// MultiWriteObject describes one write in a batch.
type MultiWriteObject struct {
	TableID     uint64
	Key         []byte
	Value       []byte
	RejectRules *wire.RejectRules

	// Results, written in place
	Version uint64
	Status  wire.Status
}

func (o *MultiWriteObject) requestSize() int {
	return 8 + 4 + len(o.Key) + 4 + len(o.Value) + wire.RejectRulesLen
}

// MultiRemoveObject describes one remove in a batch.
type MultiRemoveObject struct {
	TableID     uint64
	Key         []byte
	RejectRules *wire.RejectRules

	// Results, written in place
	Version uint64
	Status  wire.Status
}

func (o *MultiRemoveObject) requestSize() int {
	return 8 + 4 + len(o.Key) + wire.RejectRulesLen
}

// --------------------------------------------------------------------------
// Batch operations
// --------------------------------------------------------------------------

// MultiRead reads all objects, updating each descriptor in place.
func (s *Session) MultiRead(objects []*MultiReadObject) error {
	return runBatches(len(objects),
		func(i int) int { return objects[i].requestSize() },
		func(lo, hi int) (int, error) {
			return s.multiReadChunk(objects[lo:hi])
		},
		func(i int) { objects[i].Status = wire.StatusInternalError },
	)
}

// MultiWrite writes all objects, updating each descriptor in place.
func (s *Session) MultiWrite(objects []*MultiWriteObject) error {
	return runBatches(len(objects),
		func(i int) int { return objects[i].requestSize() },
		func(lo, hi int) (int, error) {
			if err := s.multiWriteChunk(objects[lo:hi]); err != nil {
				return 0, err
			}
			return hi - lo, nil
		},
		func(i int) { objects[i].Status = wire.StatusInternalError },
	)
}

// MultiRemove removes all objects, updating each descriptor in place.
func (s *Session) MultiRemove(objects []*MultiRemoveObject) error {
	return runBatches(len(objects),
		func(i int) int { return objects[i].requestSize() },
		func(lo, hi int) (int, error) {
			if err := s.multiRemoveChunk(objects[lo:hi]); err != nil {
				return 0, err
			}
			return hi - lo, nil
		},
		func(i int) { objects[i].Status = wire.StatusInternalError },
	)
}

// runBatches splits [0, n) into contiguous chunks whose combined request
// size fits one frame and runs them in order. A chunk always holds at
// least one item, oversized single items are left to the chunk RPC to
// reject. run reports how many items of its chunk the server answered:
// the server truncates read responses whose values would overflow the
// frame, so the loop resumes from the first unanswered item. On a chunk
// failure the remaining items are marked and the error returned;
// completed chunks keep their results.
func runBatches(n int, size func(i int) int, run func(lo, hi int) (int, error), markFailed func(i int)) error {
	budget := wire.BufferCapacity - batchOverhead

	lo := 0
	for lo < n {
		total := 0
		hi := lo
		for hi < n {
			itemSize := size(hi)
			if hi > lo && total+itemSize > budget {
				break
			}
			total += itemSize
			hi++
		}

		done, err := run(lo, hi)
		if err == nil && done == 0 {
			err = wire.NewError(wire.StatusInternalError, "batch made no progress")
		}
		if err != nil {
			for i := lo; i < n; i++ {
				markFailed(i)
			}
			return err
		}
		lo += done
	}
	return nil
}

// --------------------------------------------------------------------------
// Chunk marshalling
// --------------------------------------------------------------------------

// multiReadChunk issues one read batch and reports how many items the
// server answered. The answer can be a prefix of the chunk when the read
// values exceed the response frame.
func (s *Session) multiReadChunk(chunk []*MultiReadObject) (int, error) {
	b, st, err := s.call(wire.OpMultiRead, func(b *wire.Buffer) {
		b.PutUint32(uint32(len(chunk)))
		for _, o := range chunk {
			b.PutUint64(o.TableID).PutBytes32(o.Key).PutRejectRules(o.RejectRules)
		}
	})
	if err != nil {
		return 0, err
	}
	if st != wire.StatusOK {
		return 0, wire.ErrorForStatus(st)
	}

	count := int(b.Uint32())
	if count > len(chunk) {
		return 0, wire.NewError(wire.StatusInternalError,
			"batch response holds %d items, expected at most %d", count, len(chunk))
	}
	for _, o := range chunk[:count] {
		o.Status = b.Status()
		o.Version = b.Uint64()
		if o.Status == wire.StatusOK {
			o.Value = b.Bytes32()
		} else {
			o.Value = nil
		}
	}
	if err := b.Err(); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Session) multiWriteChunk(chunk []*MultiWriteObject) error {
	b, st, err := s.call(wire.OpMultiWrite, func(b *wire.Buffer) {
		b.PutUint32(uint32(len(chunk)))
		for _, o := range chunk {
			b.PutUint64(o.TableID).PutBytes32(o.Key).PutBytes32(o.Value).PutRejectRules(o.RejectRules)
		}
	})
	if err != nil {
		return err
	}
	if st != wire.StatusOK {
		return wire.ErrorForStatus(st)
	}

	if count := b.Uint32(); int(count) != len(chunk) {
		return wire.NewError(wire.StatusInternalError,
			"batch response holds %d items, expected %d", count, len(chunk))
	}
	for _, o := range chunk {
		o.Status = b.Status()
		o.Version = b.Uint64()
	}
	return b.Err()
}

func (s *Session) multiRemoveChunk(chunk []*MultiRemoveObject) error {
	b, st, err := s.call(wire.OpMultiRemove, func(b *wire.Buffer) {
		b.PutUint32(uint32(len(chunk)))
		for _, o := range chunk {
			b.PutUint64(o.TableID).PutBytes32(o.Key).PutRejectRules(o.RejectRules)
		}
	})
	if err != nil {
		return err
	}
	if st != wire.StatusOK {
		return wire.ErrorForStatus(st)
	}

	if count := b.Uint32(); int(count) != len(chunk) {
		return wire.NewError(wire.StatusInternalError,
			"batch response holds %d items, expected %d", count, len(chunk))
	}
	for _, o := range chunk {
		o.Status = b.Status()
		o.Version = b.Uint64()
	}
	return b.Err()
}
