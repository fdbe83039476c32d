package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOnlineWithin(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	timeout := 60 * time.Second

	tests := []struct {
		name     string
		lastSeen time.Time
		online   bool
	}{
		{"just seen", now, true},
		{"within window", now.Add(-59 * time.Second), true},
		{"exactly at timeout", now.Add(-timeout), false},
		{"past timeout", now.Add(-2 * time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.online, OnlineWithin(tt.lastSeen, now, timeout))
		})
	}
}

func TestNewTrackerDefaultsTimeout(t *testing.T) {
	tracker := NewTracker(nil, 0)
	assert.Equal(t, DefaultTimeout, tracker.timeout)

	tracker = NewTracker(nil, 30*time.Second)
	assert.Equal(t, 30*time.Second, tracker.timeout)
}
