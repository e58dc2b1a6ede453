package runlock

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestAcquireExclusive(t *testing.T) {
	state := t.TempDir()
	input := filepath.Join(t.TempDir(), "season1")

	first, err := Acquire(state, input)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if first.Path() != PathFor(state, input) {
		t.Fatalf("unexpected lock path %s", first.Path())
	}

	if _, err := Acquire(state, input); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	other, err := Acquire(state, input+"-other")
	if err != nil {
		t.Fatalf("different input should not conflict: %v", err)
	}
	_ = other.Release()

	if err := first.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("second release: %v", err)
	}

	again, err := Acquire(state, input)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	_ = again.Release()
}

func TestPathForCleansInput(t *testing.T) {
	if PathFor("/state", "/media/show/") != PathFor("/state", "/media/show") {
		t.Fatal("expected trailing slash to map to the same lock")
	}
	var nilLock *Lock
	if err := nilLock.Release(); err != nil {
		t.Fatalf("nil release: %v", err)
	}
}
