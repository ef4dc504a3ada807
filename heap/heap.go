// Package heap implements the Runtime's generational, tri-color,
// write-barrier-protected garbage collector. The mark phase can run
// either synchronously on the mutator's thread or on its own goroutine
// while the mutator keeps executing bytecode.
package heap

import (
	"sync"
	"sync/atomic"

	"github.com/gtkrshnaaa/unnarize/intern"
	"github.com/gtkrshnaaa/unnarize/value"
)

// State is the GC state machine: Idle -> Marking -> Sweeping -> Idle.
type State int32

const (
	Idle State = iota
	Marking
	Sweeping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Marking:
		return "marking"
	case Sweeping:
		return "sweeping"
	default:
		return "unknown"
	}
}

const (
	minThreshold = 32 * 1024
	maxThreshold = 4 * 1024 * 1024
)

// RootSource is implemented by the vm package so the heap can enumerate
// the register file, active call frames, and the module table without
// importing vm (which itself imports heap).
type RootSource interface {
	EnumerateRoots(visit func(value.Value))
}

// Mode selects stop-the-world or background-concurrent collection.
type Mode int

const (
	StopTheWorld Mode = iota
	BackgroundConcurrent
)

// Heap owns the nursery and old generation allocation lists and drives
// the collector.
type Heap struct {
	mu sync.Mutex // guards state, both lists, the gray worklist, and mark bits during an active cycle

	state State

	nursery value.Object // intrusive list head, young generation
	old     value.Object // intrusive list head, old generation

	gray []value.Object

	allocated int64 // bytes allocated since last collection (atomic)
	threshold int64 // atomic

	mode   Mode
	roots  RootSource
	intern *intern.Interner

	permanent []value.Object

	// extraRoots holds objects the compiler is mid-allocating and hasn't
	// yet stored anywhere a normal root walk would find — e.g. a function
	// object whose body is still compiling when a nested allocation
	// triggers a cycle. The mutator is single-threaded, so a plain stack
	// suffices.
	extraRoots []value.Object
}

// PushCompileRoot roots o for the duration of a compilation step that
// might itself allocate (and so might trigger a GC cycle) before o is
// reachable through any normal root. Pair with PopCompileRoot.
func (h *Heap) PushCompileRoot(o value.Object) {
	h.mu.Lock()
	h.extraRoots = append(h.extraRoots, o)
	h.mu.Unlock()
}

// PopCompileRoot un-roots the most recently pushed compile-time root.
func (h *Heap) PopCompileRoot() {
	h.mu.Lock()
	if n := len(h.extraRoots); n > 0 {
		h.extraRoots = h.extraRoots[:n-1]
	}
	h.mu.Unlock()
}

// Option configures a Heap at construction.
type Option func(*Heap)

func WithMode(m Mode) Option { return func(h *Heap) { h.mode = m } }

func WithInitialThreshold(n int64) Option {
	return func(h *Heap) { h.threshold = clamp(n) }
}

func New(opts ...Option) *Heap {
	h := &Heap{
		threshold: minThreshold,
		intern:    intern.New(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetRootSource registers the object that can enumerate GC roots. Must be
// called before the first collection; the vm package does this once
// during VM construction.
func (h *Heap) SetRootSource(rs RootSource) { h.roots = rs }

// Interner returns the heap's string interner; the pool is owned by the
// same Heap that allocates the StringObjs it indexes.
func (h *Heap) Interner() *intern.Interner { return h.intern }

func clamp(n int64) int64 {
	if n < minThreshold {
		return minThreshold
	}
	if n > maxThreshold {
		return maxThreshold
	}
	return n
}

// RegisterPermanent roots an object so it is never reclaimed: native
// functions registered at startup, their host Environment and Module. An
// object already on one of the heap's lists stays where it is; any other
// object is linked into the nursery.
func (h *Heap) RegisterPermanent(o value.Object) {
	o.Header().Permanent = true
	o.Header().Marked = true
	h.mu.Lock()
	h.permanent = append(h.permanent, o)
	linked := false
	for _, head := range []value.Object{h.nursery, h.old} {
		for p := head; p != nil && !linked; p = p.Header().Next {
			linked = p == o
		}
	}
	if !linked {
		h.link(o)
	}
	h.mu.Unlock()
}

// linkLocked pushes o onto the nursery list. Callers must hold h.mu.
func (h *Heap) linkLocked(o value.Object) {
	o.Header().Next = h.nursery
	h.nursery = o
	o.Header().Generation = value.GenYoung
}

func (h *Heap) link(o value.Object) {
	h.linkLocked(o)
}

// Allocate registers a freshly constructed object with the heap: it is
// linked into the nursery, and if a GC cycle is currently marking, it is
// allocated already black, satisfying the snapshot-at-the-beginning
// property for objects that didn't exist when roots were marked.
// Allocation also bumps the byte counter and may trigger a collection.
func (h *Heap) Allocate(o value.Object, size int) {
	h.mu.Lock()
	h.linkLocked(o)
	if h.state == Marking {
		o.Header().Marked = true
	}
	h.mu.Unlock()

	n := atomic.AddInt64(&h.allocated, int64(size))
	if n >= atomic.LoadInt64(&h.threshold) {
		h.maybeCollect()
	}
}

// NewString satisfies intern.Allocator: allocate a StringObj through the
// heap like any other object, so interned strings stay collectible.
func (h *Heap) NewString(data []byte) *value.StringObj {
	cp := make([]byte, len(data))
	copy(cp, data)
	s := value.NewString(cp, 0)
	h.Allocate(s, len(cp)+32)
	return s
}

func (h *Heap) maybeCollect() {
	switch h.mode {
	case StopTheWorld:
		h.Collect()
	case BackgroundConcurrent:
		h.startBackground()
	}
}

// Stats is a snapshot of heap bookkeeping, for diagnostics and tests.
type Stats struct {
	State     State
	Allocated int64
	Threshold int64
}

func (h *Heap) Stats() Stats {
	h.mu.Lock()
	st := h.state
	h.mu.Unlock()
	return Stats{
		State:     st,
		Allocated: atomic.LoadInt64(&h.allocated),
		Threshold: atomic.LoadInt64(&h.threshold),
	}
}
