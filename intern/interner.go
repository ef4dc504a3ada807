// Package intern implements the Runtime's string interner: a
// concurrent-safe pool keyed by content hash, used for strings no longer
// than value.InternThreshold bytes. Long strings bypass the pool entirely,
// so transient concatenation results never pin a pool entry. The pool must
// survive concurrent access from both the mutator and the GC's background
// marker.
package intern

import (
	"hash/maphash"
	"sync"

	"github.com/gtkrshnaaa/unnarize/value"
)

// Allocator is the minimal heap surface the interner needs: constructing a
// StringObj it can hand back to the mutator and, eventually, the GC. It is
// an interface (not a direct heap.Heap import) so this package stays a
// leaf relative to heap, which itself doesn't need to know about interning
// beyond calling Prune during sweep.
type Allocator interface {
	NewString(data []byte) *value.StringObj
}

var seed = maphash.MakeSeed()

func hashBytes(b []byte) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	h.Write(b)
	return h.Sum64()
}

type poolEntry struct {
	str  *value.StringObj
	next *poolEntry
}

// Interner is the string pool. The zero value is not usable; construct
// with New.
type Interner struct {
	mu      sync.Mutex
	buckets []*poolEntry
	count   int
}

const initialBuckets = 64

func New() *Interner {
	return &Interner{buckets: make([]*poolEntry, initialBuckets)}
}

func (p *Interner) slot(h uint64, n int) int { return int(h % uint64(n)) }

// Intern returns the existing String for this content if present, else
// allocates one via alloc and inserts it. Safe to call concurrently with
// both the mutator and the GC's background marker: the mutex guards only
// the pool's index, and is released before alloc runs, so an allocation
// that itself triggers GC bookkeeping can't deadlock against this same
// mutex.
//
// A short race window may allocate two identical Strings if two goroutines
// intern the same content concurrently; the loser is simply never
// inserted and is collected normally on the next GC cycle.
func (p *Interner) Intern(data []byte, alloc Allocator) *value.StringObj {
	if len(data) > value.InternThreshold {
		return alloc.NewString(data)
	}
	h := hashBytes(data)

	p.mu.Lock()
	if existing := p.findLocked(h, data); existing != nil {
		p.mu.Unlock()
		return existing
	}
	p.mu.Unlock()

	s := alloc.NewString(data)
	s.Hash = h

	p.mu.Lock()
	defer p.mu.Unlock()
	// Re-check under lock in case of a race with another interning call;
	// if someone beat us to it, discard our allocation (it's simply
	// unreferenced and collected normally) and return theirs.
	if existing := p.findLocked(h, data); existing != nil {
		return existing
	}
	if float64(p.count+1) > float64(len(p.buckets))*0.75 {
		p.growLocked()
	}
	idx := p.slot(h, len(p.buckets))
	p.buckets[idx] = &poolEntry{str: s, next: p.buckets[idx]}
	p.count++
	return s
}

func (p *Interner) findLocked(h uint64, data []byte) *value.StringObj {
	idx := p.slot(h, len(p.buckets))
	for e := p.buckets[idx]; e != nil; e = e.next {
		if e.str.Hash == h && string(e.str.Data) == string(data) {
			return e.str
		}
	}
	return nil
}

func (p *Interner) growLocked() {
	newBuckets := make([]*poolEntry, len(p.buckets)*2)
	for _, head := range p.buckets {
		for e := head; e != nil; {
			next := e.next
			idx := p.slot(e.str.Hash, len(newBuckets))
			e.next = newBuckets[idx]
			newBuckets[idx] = e
			e = next
		}
	}
	p.buckets = newBuckets
}

// Prune removes any pool entry whose String is no longer marked, called
// during the collector's sweep. The interner never itself keeps a
// string alive; it only caches lookups, so pruning never needs to ask the
// heap to free anything — it just forgets the pointer.
func (p *Interner) Prune(alive func(*value.StringObj) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, head := range p.buckets {
		var kept *poolEntry
		for e := head; e != nil; {
			next := e.next
			if alive(e.str) {
				e.next = kept
				kept = e
			} else {
				p.count--
			}
			e = next
		}
		p.buckets[i] = kept
	}
}

// Len reports the number of pooled strings, for tests and diagnostics.
func (p *Interner) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// Each calls fn for every interned string currently pooled, for
// diagnostics and tests.
func (p *Interner) Each(fn func(*value.StringObj)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, head := range p.buckets {
		for e := head; e != nil; e = e.next {
			fn(e.str)
		}
	}
}
