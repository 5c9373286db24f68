package middleware

import (
	"testing"
	"time"
)

func TestRateLimiter_AccountWindow(t *testing.T) {
	rl := NewRateLimiter(3, 10, time.Minute)
	defer rl.Stop()

	current := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return current }

	for i := 0; i < 3; i++ {
		if !rl.CheckAccountLimit(7) {
			t.Fatalf("request %d rejected, want allowed", i+1)
		}
	}
	if rl.CheckAccountLimit(7) {
		t.Error("4th request allowed, want rejected")
	}
	if got := rl.AccountRemaining(7); got != 0 {
		t.Errorf("AccountRemaining() = %d, want 0", got)
	}
	if !rl.CheckAccountLimit(8) {
		t.Error("other account rejected, want allowed")
	}

	current = current.Add(time.Minute + time.Second)
	if !rl.CheckAccountLimit(7) {
		t.Error("request after window rejected, want allowed")
	}
	if got := rl.AccountRemaining(7); got != 2 {
		t.Errorf("AccountRemaining() = %d, want 2", got)
	}
}

func TestRateLimiter_IP(t *testing.T) {
	tests := []struct {
		name     string
		max      int
		requests int
		want     bool
	}{
		{name: "Under limit", max: 2, requests: 1, want: true},
		{name: "At limit", max: 2, requests: 2, want: true},
		{name: "Over limit", max: 2, requests: 3, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := NewRateLimiter(100, tt.max, time.Minute)
			defer rl.Stop()

			var got bool
			for i := 0; i < tt.requests; i++ {
				got = rl.CheckIPLimit("10.0.0.1")
			}
			if got != tt.want {
				t.Errorf("CheckIPLimit() after %d requests = %v, want %v", tt.requests, got, tt.want)
			}
		})
	}
}

func TestRateLimiter_Reset(t *testing.T) {
	rl := NewRateLimiter(1, 1, time.Minute)
	defer rl.Stop()

	rl.CheckAccountLimit(1)
	if rl.CheckAccountLimit(1) {
		t.Fatal("second request allowed, want rejected")
	}
	rl.Reset()
	if !rl.CheckAccountLimit(1) {
		t.Error("request after Reset() rejected, want allowed")
	}
}
