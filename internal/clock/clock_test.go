package clock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestReal_Sleep(t *testing.T) {
	start := time.Now()
	if err := (Real{}).Sleep(context.Background(), 5*time.Millisecond); err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("Sleep() returned after %v, want >= 5ms", elapsed)
	}
}

func TestReal_Sleep_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := (Real{}).Sleep(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep() error = %v, want context.Canceled", err)
	}
}

func TestVirtual_Sleep(t *testing.T) {
	start := time.Unix(0, 0)
	v := NewVirtual(start)

	for i := 0; i < 3; i++ {
		if err := v.Sleep(context.Background(), time.Second); err != nil {
			t.Fatalf("Sleep() error = %v", err)
		}
	}

	if got := v.Now().Sub(start); got != 3*time.Second {
		t.Errorf("Now() advanced %v, want 3s", got)
	}
	if got := v.Slept(); got != 3*time.Second {
		t.Errorf("Slept() = %v, want 3s", got)
	}
	if got := v.Calls(); got != 3 {
		t.Errorf("Calls() = %d, want 3", got)
	}

	v.Advance(time.Minute)
	if got := v.Slept(); got != 3*time.Second {
		t.Errorf("Advance() changed Slept() to %v", got)
	}
}

func TestVirtual_Sleep_Canceled(t *testing.T) {
	v := NewVirtual(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := v.Sleep(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep() error = %v, want context.Canceled", err)
	}
	if v.Calls() != 0 {
		t.Errorf("Calls() = %d, want 0", v.Calls())
	}
}
