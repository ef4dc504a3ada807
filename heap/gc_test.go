package heap

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/gtkrshnaaa/unnarize/value"
)

func heapContains(h *Heap, target value.Object) bool {
	for o := h.old; o != nil; o = o.Header().Next {
		if o == target {
			return true
		}
	}
	for o := h.nursery; o != nil; o = o.Header().Next {
		if o == target {
			return true
		}
	}
	return false
}

func liveCount(h *Heap) int {
	return h.listLen(h.old) + h.listLen(h.nursery)
}

func TestCollectIsIdempotent(t *testing.T) {
	h := New(WithMode(StopTheWorld))
	roots := &fakeRoots{}
	h.SetRootSource(roots)

	arr := value.NewArray()
	h.Allocate(arr, 32)
	for i := 0; i < 10; i++ {
		arr.Push(value.Obj(h.NewString([]byte{byte('a' + i)})))
	}
	_ = h.NewString([]byte("garbage"))
	roots.values = []value.Value{value.Obj(arr)}

	h.Collect()
	after1 := liveCount(h)

	h.Collect()
	after2 := liveCount(h)

	if after2 != after1 {
		t.Fatalf("second Collect changed live count: %d -> %d; a full cycle must be idempotent", after1, after2)
	}
	if !heapContains(h, arr) {
		t.Error("rooted array swept")
	}
	for _, item := range arr.Items {
		if !heapContains(h, item.AsObject()) {
			t.Errorf("reachable string %q swept", item.Stringify())
		}
	}
}

func TestTransientAllocationsDoNotAccumulate(t *testing.T) {
	h := New(WithMode(StopTheWorld), WithInitialThreshold(minThreshold))
	h.SetRootSource(&fakeRoots{})

	for i := 0; i < 50000; i++ {
		_ = h.NewString([]byte(fmt.Sprintf("tmp-%d", i)))
	}
	h.Collect()

	if n := liveCount(h); n != 0 {
		t.Errorf("%d objects survived with no roots; unretained temporaries must all be reclaimed", n)
	}
}

// FuzzWriteBarrierRetainsStoresIntoBlackContainers drives the tri-color
// invariant the write barrier exists to protect: with a cycle past the
// point where every rooted container is already black, storing a white
// value into one (array push, map set, struct field set, global define —
// each followed by the barrier call the interpreter's mutating opcodes
// make) must still retain that value through the cycle's sweep.
func FuzzWriteBarrierRetainsStoresIntoBlackContainers(f *testing.F) {
	f.Add(uint64(1))
	f.Add(uint64(0xdecafbad))
	f.Fuzz(func(t *testing.T, seed uint64) {
		rng := rand.New(rand.NewSource(int64(seed)))

		h := New(WithMode(StopTheWorld))
		roots := &fakeRoots{}
		h.SetRootSource(roots)

		arr := value.NewArray()
		h.Allocate(arr, 32)
		m := value.NewMap()
		h.Allocate(m, 48)
		field := h.NewString([]byte("payload"))
		def := &value.StructDefObj{Name: "Box", Fields: []*value.StringObj{field}}
		h.Allocate(def, 48)
		inst := value.NewStructInstance(def, []value.Value{value.Nil})
		h.Allocate(inst, 48)
		env := value.NewEnvironment("m", nil)
		h.Allocate(env, 128)
		globalName := h.Interner().Intern([]byte("g"), h)
		roots.values = []value.Value{
			value.Obj(arr), value.Obj(m), value.Obj(inst), value.Obj(env), value.Obj(globalName),
		}

		// White victims: allocated before the cycle, reachable from nothing.
		n := 4 + rng.Intn(24)
		victims := make([]*value.StringObj, n)
		for i := range victims {
			victims[i] = h.NewString([]byte(fmt.Sprintf("victim-%d-%d", seed, i)))
		}

		// Mark roots and trace to exhaustion without sweeping: every rooted
		// container is now black, every victim still white.
		h.mu.Lock()
		h.beginCycleLocked()
		for len(h.gray) > 0 {
			last := len(h.gray) - 1
			o := h.gray[last]
			h.gray = h.gray[:last]
			h.traceChildrenLocked(o)
		}
		h.mu.Unlock()

		var lastStructVictim, lastGlobalVictim *value.StringObj
		expectLive := map[*value.StringObj]bool{}
		for i, v := range victims {
			switch rng.Intn(4) {
			case 0:
				arr.Push(value.Obj(v))
				h.WriteBarrier(arr)
				expectLive[v] = true
			case 1:
				m.Set(value.IntKey(int64(i)), value.Obj(v))
				h.WriteBarrier(m)
				expectLive[v] = true
			case 2:
				inst.Set("payload", value.Obj(v))
				h.WriteBarrier(inst)
				lastStructVictim = v
			default:
				env.DefineVariable(globalName, value.Obj(v))
				h.WriteBarrier(env)
				lastGlobalVictim = v
			}
		}
		// Overwritten struct/global stores are legitimately collectible;
		// only the final occupant of each slot must survive.
		if lastStructVictim != nil {
			expectLive[lastStructVictim] = true
		}
		if lastGlobalVictim != nil {
			expectLive[lastGlobalVictim] = true
		}

		h.mu.Lock()
		h.drainLocked()
		h.finishCycleLocked()
		h.mu.Unlock()

		for v := range expectLive {
			if !heapContains(h, v) {
				t.Errorf("live value %q reclaimed despite the write barrier", string(v.Data))
			}
		}
	})
}
