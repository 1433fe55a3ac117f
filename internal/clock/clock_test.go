package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedClock(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	clk := NewFixed(at)

	assert.Equal(t, at.UTC(), clk.Now())
	assert.Equal(t, time.UTC, clk.Now().Location())
}

func TestManualClock(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	clk := NewManual(start)

	assert.Equal(t, start, clk.Now())

	clk.Advance(15 * time.Minute)
	assert.Equal(t, start.Add(15*time.Minute), clk.Now())

	later := start.Add(48 * time.Hour)
	clk.Set(later)
	assert.Equal(t, later, clk.Now())
}

func TestSystemClockIsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, NewSystem().Now().Location())
}
