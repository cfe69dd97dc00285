package engine

import (
	"sort"

	"github.com/ValentinKolb/tkv/rpc/wire"
)

// EnumItem is one (key, value, version) triple yielded by Enumerate.
type EnumItem struct {
	Key     []byte
	Value   []byte
	Version uint64
}

// wireSize is the encoded size of the item inside an enumerate response
// (two 32-bit length prefixes plus the 64-bit version).
func (it *EnumItem) wireSize() int {
	return 4 + len(it.Key) + 4 + len(it.Value) + 8
}

// Enumerate returns the objects of a table whose key is lexicographically
// greater than or equal to startKey, in ascending key order, stopping
// before the encoded items would exceed maxBytes (at least one item is
// returned whenever any qualifies). An empty result means the enumeration
// is exhausted. An empty startKey starts from the beginning; advancing
// the cursor to lastKey+"\x00" yields the next page, which makes the
// enumeration restartable and stateless on the server.
//
// Each page is a snapshot: objects mutated between pages may or may not
// be observed, keys at or before the cursor are never revisited.
func (e *Engine) Enumerate(tableID uint64, startKey []byte, maxBytes int) ([]EnumItem, wire.Status) {
	tbl, st := e.lookup(tableID)
	if st != wire.StatusOK {
		return nil, st
	}

	start := string(startKey)
	var items []EnumItem
	tbl.objects.Range(func(key string, obj Object) bool {
		if key < start {
			return true
		}
		value := make([]byte, len(obj.Value))
		copy(value, obj.Value)
		items = append(items, EnumItem{
			Key:     []byte(key),
			Value:   value,
			Version: obj.Version,
		})
		return true
	})

	sort.Slice(items, func(i, j int) bool {
		return string(items[i].Key) < string(items[j].Key)
	})

	// Cut the page at the byte budget
	total := 0
	for i := range items {
		total += items[i].wireSize()
		if total > maxBytes && i > 0 {
			return items[:i], wire.StatusOK
		}
	}
	return items, wire.StatusOK
}
