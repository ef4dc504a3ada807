package heap

import (
	"sync/atomic"

	"github.com/gtkrshnaaa/unnarize/value"
)

// Collect runs one full stop-the-world cycle synchronously on the
// mutator's own thread, the mode triggered at allocation thresholds.
func (h *Heap) Collect() {
	h.mu.Lock()
	h.beginCycleLocked()
	h.drainLocked()
	h.finishCycleLocked()
	h.mu.Unlock()
}

// beginCycleLocked promotes the nursery onto the head of the old list and
// grays every root. Caller holds h.mu.
func (h *Heap) beginCycleLocked() {
	h.state = Marking
	h.gray = h.gray[:0]

	// Promote: nursery survivors (and this-cycle's brand-new objects) move
	// to the old list's bookkeeping so both lists are traced together;
	// there is no remembered set, over-marking conservatively instead.
	if h.nursery != nil {
		tail := h.nursery
		for tail.Header().Next != nil {
			tail.Header().Generation = value.GenOld
			tail = tail.Header().Next
		}
		tail.Header().Generation = value.GenOld
		tail.Header().Next = h.old
		h.old = h.nursery
		h.nursery = nil
	}

	for _, p := range h.permanent {
		p.Header().Marked = true
	}

	if h.roots != nil {
		h.roots.EnumerateRoots(func(v value.Value) {
			h.grayValueLocked(v)
		})
	}
	for _, o := range h.extraRoots {
		h.grayValueLocked(value.Obj(o))
	}
	// The interner is deliberately not walked as a root source here: every
	// interned string still in use is already reachable through a chunk's
	// constant pool or an environment's key bindings, both of which the
	// trace above already covers. Graying the whole pool unconditionally
	// would make every interned string immortal and mean Prune (below, via
	// finishCycleLocked) never actually drops anything; the pool caches
	// lookups, it must never keep a string alive.
}

func (h *Heap) grayValueLocked(v value.Value) {
	if !v.IsObject() {
		return
	}
	o := v.AsObject()
	if o == nil {
		return
	}
	hdr := o.Header()
	if hdr.Marked {
		return
	}
	hdr.Marked = true
	h.gray = append(h.gray, o)
}

// drainLocked traces the gray worklist to empty. Caller
// holds h.mu; used by the synchronous path. The background path drains
// with the same primitive but releases the lock between pops (see
// background.go).
func (h *Heap) drainLocked() {
	for len(h.gray) > 0 {
		n := len(h.gray) - 1
		o := h.gray[n]
		h.gray = h.gray[:n]
		h.traceChildrenLocked(o)
	}
	h.state = Sweeping
}

// traceChildrenLocked blackens o by graying every value and child pointer
// reachable through it: array items, map entries, struct fields, a
// function's constant pool and defining environment, a module's
// environment, an environment's parent and entry key-strings.
func (h *Heap) traceChildrenLocked(o value.Object) {
	switch n := o.(type) {
	case *value.StringObj:
		// leaf: no children.
	case *value.ArrayObj:
		for _, item := range n.Items {
			h.grayValueLocked(item)
		}
	case *value.MapObj:
		n.Each(func(k value.MapKey, v value.Value) {
			if !k.IsInt {
				// string keys aren't traced independently here: map keys
				// are plain Go strings on MapKey, not StringObj pointers,
				// so there is nothing heap-owned to gray beyond the value.
				_ = k
			}
			h.grayValueLocked(v)
		})
	case *value.StructDefObj:
		for _, f := range n.Fields {
			h.grayValueLocked(value.Obj(f))
		}
	case *value.StructInstanceObj:
		h.grayValueLocked(value.Obj(n.Def))
		for _, v := range n.Values {
			h.grayValueLocked(v)
		}
	case *value.FunctionObj:
		if n.Chunk != nil {
			for _, c := range n.Chunk.Constants {
				h.grayValueLocked(c)
			}
		}
		if n.ModuleEnv != nil {
			h.grayValueLocked(value.Obj(n.ModuleEnv))
		}
	case *value.ModuleObj:
		h.grayValueLocked(value.Obj(n.Env))
	case *value.EnvironmentObj:
		if n.Parent != nil {
			h.grayValueLocked(value.Obj(n.Parent))
		}
		n.EachVariable(func(key *value.StringObj, v value.Value) {
			h.grayValueLocked(value.Obj(key))
			h.grayValueLocked(v)
		})
		n.EachFunction(func(key *value.StringObj, v value.Value) {
			h.grayValueLocked(value.Obj(key))
			h.grayValueLocked(v)
		})
	case *value.FutureObj:
		if n.IsDone() {
			res, _ := n.Await()
			h.grayValueLocked(res)
		}
	}
}

// finishCycleLocked prunes the interner, sweeps both lists, recomputes
// the adaptive threshold, and returns to Idle. Caller holds h.mu.
func (h *Heap) finishCycleLocked() {
	h.intern.Prune(func(s *value.StringObj) bool { return s.Header().Marked })

	before := h.listLen(h.old) + h.listLen(h.nursery)
	h.old = h.sweepList(h.old)
	h.nursery = h.sweepList(h.nursery)
	after := h.listLen(h.old) + h.listLen(h.nursery)

	h.adjustThresholdLocked(before, after)
	atomic.StoreInt64(&h.allocated, 0)
	h.state = Idle
}

func (h *Heap) listLen(head value.Object) int {
	n := 0
	for o := head; o != nil; o = o.Header().Next {
		n++
	}
	return n
}

// sweepList unlinks and drops unmarked, non-permanent objects, clearing
// the mark bit on survivors.
func (h *Heap) sweepList(head value.Object) value.Object {
	var kept, tail value.Object
	for o := head; o != nil; {
		next := o.Header().Next
		if o.Header().Marked || o.Header().Permanent {
			o.Header().Marked = o.Header().Permanent // permanent objects stay marked forever
			o.Header().Next = nil
			if kept == nil {
				kept = o
				tail = o
			} else {
				tail.Header().Next = o
				tail = o
			}
		}
		o = next
	}
	return kept
}

// adjustThresholdLocked applies the adaptive threshold rule: if
// this cycle freed more than half the heap, raise the threshold (x3); if
// it freed less than 20%, tighten (x1.5); otherwise double. Clamp to
// [minThreshold, maxThreshold].
func (h *Heap) adjustThresholdLocked(before, after int) {
	cur := atomic.LoadInt64(&h.threshold)
	if before == 0 {
		atomic.StoreInt64(&h.threshold, clamp(cur*2))
		return
	}
	freedFrac := float64(before-after) / float64(before)
	var next int64
	switch {
	case freedFrac > 0.5:
		next = cur * 3
	case freedFrac < 0.2:
		next = cur + cur/2
	default:
		next = cur * 2
	}
	atomic.StoreInt64(&h.threshold, clamp(next))
}
