package store

import (
	"testing"
	"time"
)

func TestBackoffDelay(t *testing.T) {
	s := &QueueStore{cfg: QueueConfig{
		MaxRetries: 5,
		BaseDelay:  30 * time.Second,
		MaxDelay:   time.Hour,
	}}

	tests := []struct {
		attempt int
		min     time.Duration
		max     time.Duration
	}{
		{1, 30 * time.Second, 36 * time.Second},
		{2, time.Minute, 72 * time.Second},
		{3, 2 * time.Minute, 144 * time.Second},
		{10, time.Hour, time.Hour}, // exceeds cap before jitter
	}

	for _, tt := range tests {
		for range 20 {
			got := s.backoffDelay(tt.attempt)
			if got < tt.min || got > tt.max {
				t.Errorf("backoffDelay(%d) = %v, want in [%v, %v]", tt.attempt, got, tt.min, tt.max)
			}
		}
	}
}
