package heap

import (
	"testing"
	"time"

	"github.com/gtkrshnaaa/unnarize/value"
)

func TestBackgroundConcurrentCollectReachesIdle(t *testing.T) {
	h := New(WithMode(BackgroundConcurrent), WithInitialThreshold(minThreshold))
	roots := &fakeRoots{}
	h.SetRootSource(roots)

	reachable := h.NewString([]byte("kept"))
	roots.values = []value.Value{value.Obj(reachable)}
	h.Allocate(&value.StringObj{}, int(minThreshold)+1) // crosses the threshold, starts a background cycle

	deadline := time.Now().Add(2 * time.Second)
	for h.Stats().State != Idle {
		if time.Now().After(deadline) {
			t.Fatalf("background cycle never reached Idle, stuck in %v", h.Stats().State)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWriteBarrierReGraysBlackContainerDuringMarking(t *testing.T) {
	h := New(WithMode(StopTheWorld))
	h.SetRootSource(&fakeRoots{})

	arr := value.NewArray()
	h.Allocate(arr, 32)

	h.mu.Lock()
	h.state = Marking
	arr.Header().Marked = true
	h.gray = h.gray[:0]
	h.mu.Unlock()

	h.WriteBarrier(arr)

	h.mu.Lock()
	found := false
	for _, o := range h.gray {
		if o == value.Object(arr) {
			found = true
		}
	}
	h.mu.Unlock()

	if !found {
		t.Error("WriteBarrier should re-gray an already-marked container during an active cycle")
	}
}

func TestWriteBarrierNoopWhenIdle(t *testing.T) {
	h := New(WithMode(StopTheWorld))
	h.SetRootSource(&fakeRoots{})
	arr := value.NewArray()
	h.Allocate(arr, 32)

	h.WriteBarrier(arr) // state is Idle after Allocate's collection, if any ran

	h.mu.Lock()
	n := len(h.gray)
	h.mu.Unlock()
	if n != 0 {
		t.Errorf("WriteBarrier outside an active cycle should not touch the gray list, got %d entries", n)
	}
}
