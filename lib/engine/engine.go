package engine

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/ValentinKolb/tkv/rpc/wire"
	"github.com/puzpuzpuz/xsync/v3"
)

// Object is a stored value together with its version. Versions start at 1
// and strictly increase on every successful mutation of the key.
type Object struct {
	Value   []byte
	Version uint64
}

// table holds the objects of one table. Object keys are raw byte strings
// stored as Go strings (byte-exact, no NUL termination implied).
type table struct {
	id         uint64
	name       string
	serverSpan uint32
	objects    *xsync.MapOf[string, Object]
	versionSeq atomic.Uint64
}

// Engine is the in-memory storage engine. All methods are safe for
// concurrent use.
type Engine struct {
	tables *xsync.MapOf[uint64, *table]
	names  *xsync.MapOf[string, uint64]
	nextID atomic.Uint64
}

// New creates an empty engine.
func New() *Engine {
	return &Engine{
		tables: xsync.NewMapOf[uint64, *table](),
		names:  xsync.NewMapOf[string, uint64](),
	}
}

// --------------------------------------------------------------------------
// Table lifecycle
// --------------------------------------------------------------------------

// CreateTable creates a table with the given name and server span, or
// returns the id of the existing table of that name (idempotent per name).
// A serverSpan of 0 is normalized to the default of 1.
func (e *Engine) CreateTable(name string, serverSpan uint32) uint64 {
	if serverSpan == 0 {
		serverSpan = 1
	}

	id, _ := e.names.LoadOrCompute(name, func() uint64 {
		return e.nextID.Add(1)
	})

	// LoadOrCompute on the id map makes the create race-safe: whichever
	// goroutine wins stores the table, the others observe it.
	e.tables.LoadOrCompute(id, func() *table {
		return &table{
			id:         id,
			name:       name,
			serverSpan: serverSpan,
			objects:    xsync.NewMapOf[string, Object](),
		}
	})

	return id
}

// DropTable deletes the table with the given name along with all its
// objects. Dropping an unknown name is a no-op.
func (e *Engine) DropTable(name string) {
	if id, ok := e.names.LoadAndDelete(name); ok {
		e.tables.Delete(id)
	}
}

// GetTableId resolves a table name to its id.
func (e *Engine) GetTableId(name string) (uint64, wire.Status) {
	id, ok := e.names.Load(name)
	if !ok {
		return 0, wire.StatusTableDoesntExist
	}
	return id, wire.StatusOK
}

func (e *Engine) lookup(tableID uint64) (*table, wire.Status) {
	tbl, ok := e.tables.Load(tableID)
	if !ok {
		return nil, wire.StatusTableDoesntExist
	}
	return tbl, wire.StatusOK
}

// --------------------------------------------------------------------------
// RejectRules evaluation
// --------------------------------------------------------------------------

// checkRules evaluates the preconditions against the object's current
// state. version is 0 when the object does not exist.
func checkRules(rules *wire.RejectRules, exists bool, version uint64) wire.Status {
	if rules.IsZero() {
		return wire.StatusOK
	}
	if rules.DoesntExist && !exists {
		return wire.StatusObjectDoesntExist
	}
	if rules.Exists && exists {
		return wire.StatusObjectExists
	}
	if rules.VersionLeGiven && version <= rules.GivenVersion {
		return wire.StatusWrongVersion
	}
	if rules.VersionNeGiven && version != rules.GivenVersion {
		return wire.StatusWrongVersion
	}
	return wire.StatusOK
}

// --------------------------------------------------------------------------
// Object operations
// --------------------------------------------------------------------------

// Read returns the value and current version of an object. A missing
// object yields StatusObjectDoesntExist with version 0; rejected rules
// yield the current version alongside the status.
func (e *Engine) Read(tableID uint64, key []byte, rules *wire.RejectRules) ([]byte, uint64, wire.Status) {
	tbl, st := e.lookup(tableID)
	if st != wire.StatusOK {
		return nil, 0, st
	}

	obj, ok := tbl.objects.Load(string(key))
	if !ok {
		return nil, 0, wire.StatusObjectDoesntExist
	}
	if st := checkRules(rules, true, obj.Version); st != wire.StatusOK {
		return nil, obj.Version, st
	}

	// Copy so the caller never aliases engine-owned storage
	value := make([]byte, len(obj.Value))
	copy(value, obj.Value)
	return value, obj.Version, wire.StatusOK
}

// Write replaces the value of an object, creating it if absent. On
// success it returns the new version; on rejection it returns the current
// version (0 if the object does not exist) without mutating state.
func (e *Engine) Write(tableID uint64, key, value []byte, rules *wire.RejectRules) (uint64, wire.Status) {
	tbl, st := e.lookup(tableID)
	if st != wire.StatusOK {
		return 0, st
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	var (
		version uint64
		status  wire.Status
	)
	tbl.objects.Compute(string(key), func(old Object, loaded bool) (Object, bool) {
		if status = checkRules(rules, loaded, old.Version); status != wire.StatusOK {
			version = old.Version
			// delete=true when the key was absent, otherwise Compute
			// would materialize the zero value
			return old, !loaded
		}
		version = tbl.versionSeq.Add(1)
		return Object{Value: valueCopy, Version: version}, false
	})

	return version, status
}

// Remove deletes an object and returns its version as of just before
// deletion. Removing an absent object succeeds as a no-op with version 0
// (unless the rules reject it).
func (e *Engine) Remove(tableID uint64, key []byte, rules *wire.RejectRules) (uint64, wire.Status) {
	tbl, st := e.lookup(tableID)
	if st != wire.StatusOK {
		return 0, st
	}

	var (
		version uint64
		status  wire.Status
	)
	tbl.objects.Compute(string(key), func(old Object, loaded bool) (Object, bool) {
		status = checkRules(rules, loaded, old.Version)
		version = old.Version
		if status != wire.StatusOK {
			return old, !loaded
		}
		return old, true
	})

	return version, status
}

// IncrementInt64 atomically adds delta to the 8-byte little-endian
// integer stored at key and returns the resulting value plus the new
// version. A missing object is created holding delta (subject to the
// rules); an existing value that is not exactly 8 bytes is an internal
// error.
func (e *Engine) IncrementInt64(tableID uint64, key []byte, delta int64, rules *wire.RejectRules) (int64, uint64, wire.Status) {
	tbl, st := e.lookup(tableID)
	if st != wire.StatusOK {
		return 0, 0, st
	}

	var (
		result  int64
		version uint64
		status  wire.Status
	)
	tbl.objects.Compute(string(key), func(old Object, loaded bool) (Object, bool) {
		if status = checkRules(rules, loaded, old.Version); status != wire.StatusOK {
			version = old.Version
			return old, !loaded
		}

		current := int64(0)
		if loaded {
			if len(old.Value) != 8 {
				status = wire.StatusInternalError
				version = old.Version
				return old, false
			}
			current = int64(binary.LittleEndian.Uint64(old.Value))
		}

		result = current + delta
		value := make([]byte, 8)
		binary.LittleEndian.PutUint64(value, uint64(result))

		version = tbl.versionSeq.Add(1)
		return Object{Value: value, Version: version}, false
	})

	return result, version, status
}
