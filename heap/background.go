package heap

import "github.com/gtkrshnaaa/unnarize/value"

// startBackground implements the background-concurrent mode: the
// mutator marks roots (a brief pause, done synchronously here), then a
// dedicated goroutine drains the gray worklist while the mutator keeps
// executing bytecode. Write barriers (WriteBarrier, below) keep the tri-color
// invariant; sweep runs under h.mu once the worklist empties.
func (h *Heap) startBackground() {
	h.mu.Lock()
	if h.state != Idle {
		// A cycle is already in flight; nothing to do.
		h.mu.Unlock()
		return
	}
	h.beginCycleLocked()
	h.mu.Unlock()

	go h.backgroundDrain()
}

// backgroundDrain pops one gray object at a time, releasing h.mu between
// pops so the mutator's write barrier can push newly-reachable containers
// back onto the worklist without blocking behind a long trace. The gray
// worklist and mark bits are guarded by the GC mutex throughout.
func (h *Heap) backgroundDrain() {
	for {
		h.mu.Lock()
		if len(h.gray) == 0 {
			// Empty under lock: no in-flight write barrier call can have
			// missed adding work, since it too takes h.mu before pushing.
			h.state = Sweeping
			h.finishCycleLocked()
			h.mu.Unlock()
			return
		}
		n := len(h.gray) - 1
		o := h.gray[n]
		h.gray = h.gray[:n]
		h.traceChildrenLocked(o)
		h.mu.Unlock()
	}
}

// WriteBarrier is the collector's write barrier: on any
// pointer store into an already-marked (black) container during an active
// GC cycle, the store must re-gray the target container so the newly
// reachable white value already stored isn't missed by a collector that
// has already scanned past it. Every opcode that mutates a container
// (array push, index-store, struct field store, global define/set,
// environment insert) invokes this after the store.
//
// container is re-grayed unconditionally if a cycle is active: whether it
// was already black (common case, needs re-gray) or still gray (already
// queued, a harmless extra re-push), this is simpler and strictly safe
// compared to tracking per-object black/gray distinctly, at the cost of
// occasionally re-scanning a container that didn't need it.
func (h *Heap) WriteBarrier(container value.Object) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != Marking {
		return
	}
	hdr := container.Header()
	if !hdr.Marked {
		// White container being mutated before the collector ever reached
		// it: it will be grayed normally when the collector's trace
		// reaches whatever already holds a reference to it.
		return
	}
	h.gray = append(h.gray, container)
}
