package redisclient

import (
	"context"
	"errors"
	"testing"
)

func TestLocalLocker_RejectsReentry(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	err := l.WithLock(ctx, "reminder:2024-03-05", func(ctx context.Context) error {
		inner := l.WithLock(ctx, "reminder:2024-03-05", func(context.Context) error { return nil })
		if !errors.Is(inner, ErrLockNotAcquired) {
			t.Fatalf("expected ErrLockNotAcquired, got %v", inner)
		}
		return l.WithLock(ctx, "reminder:2024-03-06", func(context.Context) error { return nil })
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ran := false
	if err := l.WithLock(ctx, "reminder:2024-03-05", func(context.Context) error { ran = true; return nil }); err != nil || !ran {
		t.Fatalf("lock should be free after release, err=%v", err)
	}
}
