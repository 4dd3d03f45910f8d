package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDelaySchedule(t *testing.T) {
	p := Policy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		Factor:      2,
		Jitter:      0, // deterministic for the test
		MaxDelay:    30 * time.Second,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 0},
		{2, 1 * time.Second},
		{3, 2 * time.Second},
		{4, 4 * time.Second},
		{5, 8 * time.Second},
	}

	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDelayCap(t *testing.T) {
	p := Policy{MaxAttempts: 10, BaseDelay: time.Second, Factor: 2, Jitter: 0, MaxDelay: 30 * time.Second}
	if got := p.Delay(10); got != 30*time.Second {
		t.Errorf("Delay(10) = %v, want cap of 30s", got)
	}
}

func TestDelayJitterBounds(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Second, Factor: 2, Jitter: 0.2, MaxDelay: 30 * time.Second}
	for i := 0; i < 100; i++ {
		d := p.Delay(3) // nominal 2s
		if d < 1600*time.Millisecond || d > 2400*time.Millisecond {
			t.Fatalf("Delay(3) = %v, outside ±20%% of 2s", d)
		}
	}
}

func TestDoStopsOnSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 5, BaseDelay: time.Millisecond, Factor: 2, MaxDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	wantErr := errors.New("persistent")
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 4, BaseDelay: time.Millisecond, Factor: 2, MaxDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Do error = %v, want %v", err, wantErr)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}

func TestDoHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, Policy{MaxAttempts: 3, BaseDelay: time.Hour}, func(ctx context.Context) error {
		return errors.New("never succeeds")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do error = %v, want context.Canceled", err)
	}
}
