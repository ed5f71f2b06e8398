package timing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanStart(t *testing.T) {
	start := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before official start", start.Add(-30 * time.Minute), true},
		{"exactly at start", start, true},
		{"inside grace", start.Add(14 * time.Minute), true},
		{"exactly at grace boundary", start.Add(Grace), true},
		{"one minute past grace", start.Add(16 * time.Minute), false},
		{"hours late", start.Add(3 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanStart(tt.now, &start))
		})
	}
}

func TestCanStartUntimedPaper(t *testing.T) {
	// Mock papers have no schedule and may always be started.
	assert.True(t, CanStart(time.Now(), nil))
	assert.True(t, CanStart(time.Now().Add(100*24*time.Hour), nil))
}

func TestDeadline(t *testing.T) {
	end := time.Date(2026, 3, 12, 13, 0, 0, 0, time.UTC)

	deadline, ok := Deadline(&end)
	assert.True(t, ok)
	assert.Equal(t, end.Add(Grace), deadline)
}

func TestDeadlineUntimedPaper(t *testing.T) {
	_, ok := Deadline(nil)
	assert.False(t, ok)
}
