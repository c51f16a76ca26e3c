package history

import (
	"context"
	"testing"
)

func TestLockKeyIsStableForSameTable(t *testing.T) {
	a := lockKey("schema_history")
	b := lockKey("schema_history")
	if a != b {
		t.Fatalf("lockKey not stable: %d != %d", a, b)
	}
	if lockKey("schema_history") == lockKey("other_table") {
		t.Fatalf("lockKey collided across distinct table names")
	}
}

func TestMutexLockerReentrantDoesNotDeadlock(t *testing.T) {
	l := &mutexLocker{}
	ctx := context.Background()

	releaseOuter, err := l.Acquire(ctx)
	if err != nil {
		t.Fatalf("outer Acquire: %v", err)
	}
	releaseInner, err := l.Acquire(ctx)
	if err != nil {
		t.Fatalf("nested Acquire: %v", err)
	}
	releaseInner()
	releaseOuter()

	if l.depth != 0 || l.held {
		t.Fatalf("lock not fully released: depth=%d held=%v", l.depth, l.held)
	}

	// A later, independent acquire must succeed once the nested pair has
	// fully unwound.
	release, err := l.Acquire(ctx)
	if err != nil {
		t.Fatalf("post-release Acquire: %v", err)
	}
	release()
}
