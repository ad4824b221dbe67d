// Package restable implements the Component Model's resource table:
// handle allocation, the handle/representation/object mappings, weak
// guest-owned proxies with finalizer-driven cleanup, and the loop table used
// when a single module plays both the import and export side of a world.
package restable

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// Trap is raised for any fatal table condition: an unknown handle, a
// duplicate registration, or a collected proxy.
type Trap struct {
	Op  string
	Msg string
}

func (t *Trap) Error() string { return fmt.Sprintf("restable: %s: %s", t.Op, t.Msg) }

func trap(op, format string, args ...any) error {
	return &Trap{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Ctor constructs a host-side proxy object for a guest-owned resource first
// seen via Get. Dtor releases one: invoked both from an explicit Drop and
// from the finalizer queue when a weak proxy is collected.
type Ctor func(handle, rep uint32) any
type Dtor func(rep uint32) error

// entry is the per-handle bookkeeping the table keeps.
type entry struct {
	rep    uint32
	strong any  // non-nil for a host-owned strong object
	weak   bool // true once the entry only exists as a finalizer-managed proxy
}

// Table is one resource type's table: every resource type a world declares
// gets its own Table instance.
type Table struct {
	mu sync.Mutex

	logger *zap.Logger
	ctor   Ctor
	dtor   Dtor

	counter   uint32
	handles   map[uint32]*entry
	loopTable map[uint32]uint32 // synthetic rep -> handle
	loopNext  uint32

	borrowed map[uint32]int // outstanding EndBorrow count per handle
}

// New builds an empty Table. ctor/dtor may be nil for a resource type that
// never crosses into guest ownership (host-only resources).
func New(logger *zap.Logger, ctor Ctor, dtor Dtor) *Table {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Table{
		logger:    logger,
		ctor:      ctor,
		dtor:      dtor,
		counter:   1,
		handles:   make(map[uint32]*entry),
		loopTable: make(map[uint32]uint32),
		loopNext:  math.MaxUint32,
		borrowed:  make(map[uint32]int),
	}
}

// NewHandle allocates a new handle for rep, recording it strong-less (a bare
// handle/representation pair with no host object attached yet).
func (t *Table) NewHandle(rep uint32) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.counter
	t.counter++
	t.handles[h] = &entry{rep: rep}
	return h
}

// Representation returns the representation backing h.
func (t *Table) Representation(h uint32) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.handles[h]
	if !ok {
		return 0, trap("representation", "handle %d is unknown", h)
	}
	return e.rep, nil
}

// DropHandle invokes the destructor if present, removes the handle entry, and
// returns the representation it held.
func (t *Table) DropHandle(h uint32) (uint32, error) {
	t.mu.Lock()
	e, ok := t.handles[h]
	if !ok {
		t.mu.Unlock()
		return 0, trap("drop-handle", "handle %d is unknown", h)
	}
	delete(t.handles, h)
	dtor := t.dtor
	rep := e.rep
	t.mu.Unlock()

	if dtor != nil {
		if err := dtor(rep); err != nil {
			t.logger.Warn("resource destructor failed", zap.Uint32("handle", h), zap.Uint32("rep", rep), zap.Error(err))
		}
	}
	return rep, nil
}

// Register installs obj as a strong, host-owned object. If handle is 0 a new
// one is allocated; otherwise handle must be less than the current counter
// and not already present.
func (t *Table) Register(obj any, handle uint32) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if handle != 0 {
		if handle >= t.counter {
			return 0, trap("register", "explicit handle %d was never allocated by this table", handle)
		}
		if _, exists := t.handles[handle]; exists {
			return 0, trap("register", "handle %d is already registered", handle)
		}
		t.handles[handle] = &entry{strong: obj}
		return handle, nil
	}
	h := t.counter
	t.counter++
	t.handles[h] = &entry{strong: obj}
	return h, nil
}

// RegisterProxy installs a weak, finalizer-managed proxy for a guest-owned
// resource under an already-allocated handle.
func (t *Table) RegisterProxy(handle uint32, proxy any) error {
	t.mu.Lock()
	e, ok := t.handles[handle]
	if !ok {
		t.mu.Unlock()
		return trap("register-proxy", "handle %d has no representation on record", handle)
	}
	e.strong = proxy
	e.weak = true
	rep := e.rep
	t.mu.Unlock()

	runtime.SetFinalizer(proxy, func(any) { t.finalize(handle, rep) })
	return nil
}

func (t *Table) finalize(handle, rep uint32) {
	if t.dtor != nil {
		if err := t.dtor(rep); err != nil {
			t.logger.Warn("resource finalizer failed", zap.Uint32("handle", handle), zap.Uint32("rep", rep), zap.Error(err))
		}
	}
	t.mu.Lock()
	delete(t.handles, handle)
	delete(t.loopTable, rep)
	t.mu.Unlock()
}

// Get resolves h to its host object, constructing a proxy via the installed
// ctor on first sight of a bare handle/representation pair.
func (t *Table) Get(h uint32) (any, error) {
	t.mu.Lock()
	e, ok := t.handles[h]
	if !ok {
		t.mu.Unlock()
		return nil, trap("get", "handle %d is unknown", h)
	}
	if e.strong != nil {
		obj := e.strong
		t.mu.Unlock()
		return obj, nil
	}
	rep := e.rep
	ctor := t.ctor
	t.mu.Unlock()

	if ctor == nil {
		return nil, trap("get", "handle %d has no object and no proxy constructor is installed", h)
	}
	proxy := ctor(h, rep)
	if err := t.RegisterProxy(h, proxy); err != nil {
		return nil, err
	}
	return proxy, nil
}

// Remove deletes a strong entry by handle. Weak (GC-managed) proxies refuse
// removal; they are released only by the finalizer.
func (t *Table) Remove(h uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.handles[h]
	if !ok {
		return trap("remove", "handle %d is unknown", h)
	}
	if e.weak {
		return trap("remove", "handle %d is a weak proxy and is GC-managed", h)
	}
	delete(t.handles, h)
	return nil
}

// RegisterLoop allocates a synthetic representation (counted down from
// math.MaxUint32) and a fresh handle bound to it, and records the mapping
// back to the original handle h in the loop table.
func (t *Table) RegisterLoop(h uint32) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	synthetic := t.loopNext
	t.loopNext--
	newHandle := t.counter
	t.counter++
	t.handles[newHandle] = &entry{rep: synthetic}
	t.loopTable[synthetic] = h
	return newHandle
}

// GetLoop resolves a synthetic representation back to the original handle.
func (t *Table) GetLoop(rep uint32) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.loopTable[rep]
	if !ok {
		return 0, trap("get-loop", "representation %d is not a loop entry", rep)
	}
	return h, nil
}

// Borrow marks h as currently on loan for the duration of one call, per the
// Component Model's borrow-tracking extension (not in the base table sketch,
// but required to give `borrow<T>` handles real lifetime enforcement).
func (t *Table) Borrow(h uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.handles[h]; !ok {
		return trap("borrow", "handle %d is unknown", h)
	}
	t.borrowed[h]++
	return nil
}

// EndBorrow releases one outstanding loan on h.
func (t *Table) EndBorrow(h uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.borrowed[h]
	if !ok || n == 0 {
		return trap("end-borrow", "handle %d has no outstanding borrow", h)
	}
	if n == 1 {
		delete(t.borrowed, h)
	} else {
		t.borrowed[h] = n - 1
	}
	return nil
}
