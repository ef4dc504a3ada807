package value

import (
	"errors"
	"testing"
	"time"
)

func TestNewResolvedFutureIsImmediatelyDone(t *testing.T) {
	f := NewResolvedFuture(Int(7))
	if !f.IsDone() {
		t.Fatal("NewResolvedFuture should be done immediately")
	}
	got, err := f.Await()
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if got.AsInt() != 7 {
		t.Errorf("Await() = %v, want Int(7)", got)
	}
}

func TestFutureAwaitBlocksUntilResolve(t *testing.T) {
	f := NewFuture()
	if f.IsDone() {
		t.Fatal("a fresh Future should not be done")
	}

	done := make(chan struct{})
	var got Value
	var gotErr error
	go func() {
		got, gotErr = f.Await()
		close(done)
	}()

	// give Await a chance to actually block before resolving.
	time.Sleep(10 * time.Millisecond)
	f.Resolve(Int(42))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Await never returned after Resolve")
	}
	if gotErr != nil {
		t.Fatalf("Await returned error: %v", gotErr)
	}
	if got.AsInt() != 42 {
		t.Errorf("Await() = %v, want Int(42)", got)
	}
}

func TestFutureFailSurfacesErrorFromAwait(t *testing.T) {
	f := NewFuture()
	wantErr := errors.New("boom")
	f.Fail(wantErr)

	_, err := f.Await()
	if err != wantErr {
		t.Errorf("Await() error = %v, want %v", err, wantErr)
	}
}

func TestFutureResolveIsOneShot(t *testing.T) {
	f := NewFuture()
	f.Resolve(Int(1))
	f.Resolve(Int(2)) // should be a no-op

	got, err := f.Await()
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if got.AsInt() != 1 {
		t.Errorf("second Resolve should not overwrite the first: got %v, want Int(1)", got)
	}
}

func TestFutureFailAfterResolveIsNoOp(t *testing.T) {
	f := NewFuture()
	f.Resolve(Int(1))
	f.Fail(errors.New("too late"))

	got, err := f.Await()
	if err != nil {
		t.Fatalf("Fail after Resolve should not surface an error, got: %v", err)
	}
	if got.AsInt() != 1 {
		t.Errorf("Await() = %v, want Int(1)", got)
	}
}
