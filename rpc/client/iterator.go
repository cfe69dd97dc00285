package client

import (
	"github.com/ValentinKolb/tkv/rpc/wire"
)

// KeyValue is one (key, value, version) triple yielded by a table
// iteration.
type KeyValue struct {
	Key     []byte
	Value   []byte
	Version uint64
}

// TableIterator lazily walks all objects of one table in lexicographic
// key order, fetching one frame-sized page per RPC. It shares the
// session's buffer, so the usual session rules apply: one goroutine, no
// interleaving with other calls between Next invocations of the same
// pass. A fresh iterator re-enumerates from the start.
//
// Usage:
//
//	it := s.Iterate(tableID)
//	for it.Next() {
//		fmt.Println(it.Item().Key)
//	}
//	if err := it.Err(); err != nil {
//		return err
//	}
type TableIterator struct {
	session *Session
	tableID uint64

	cursor []byte // next page starts at this key (inclusive)
	page   []KeyValue
	pos    int
	done   bool
	err    error
}

// Iterate starts a table iteration from the first key.
func (s *Session) Iterate(tableID uint64) *TableIterator {
	return &TableIterator{
		session: s,
		tableID: tableID,
	}
}

// Next advances to the next object, fetching the next page when the
// current one is exhausted. It returns false at the end of the table or
// on error (check Err).
func (it *TableIterator) Next() bool {
	if it.err != nil {
		return false
	}

	it.pos++
	if it.pos < len(it.page) {
		return true
	}
	if it.done {
		return false
	}

	if err := it.fetchPage(); err != nil {
		it.err = err
		return false
	}
	it.pos = 0
	return len(it.page) > 0
}

// Item returns the current object. Only valid after Next returned true;
// the slices are owned by the caller.
func (it *TableIterator) Item() KeyValue {
	return it.page[it.pos]
}

// Err returns the first error the iteration ran into, nil on a clean end.
func (it *TableIterator) Err() error {
	return it.err
}

// fetchPage retrieves the next page and advances the cursor past its last
// key. An empty page means the enumeration is exhausted.
func (it *TableIterator) fetchPage() error {
	b, st, err := it.session.call(wire.OpEnumerate, func(b *wire.Buffer) {
		b.PutUint64(it.tableID).PutBytes32(it.cursor)
	})
	if err != nil {
		return err
	}
	if st != wire.StatusOK {
		return wire.ErrorForStatus(st)
	}

	count := int(b.Uint32())
	page := make([]KeyValue, 0, count)
	for i := 0; i < count; i++ {
		page = append(page, KeyValue{
			Key:     b.Bytes32(),
			Value:   b.Bytes32(),
			Version: b.Uint64(),
		})
	}
	if err := b.Err(); err != nil {
		return err
	}

	it.page = page
	if count == 0 {
		it.done = true
	} else {
		// The immediate successor of the last key: resume strictly after it
		last := page[count-1].Key
		it.cursor = append(append(it.cursor[:0], last...), 0)
	}
	return nil
}
