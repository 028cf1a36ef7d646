package clock_test

import (
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/slot-booking/internal/clock"
	"github.com/stretchr/testify/assert"
)

func TestUTC(t *testing.T) {
	before := time.Now()
	now := clock.UTC.Now()

	assert.Equal(t, time.UTC, now.Location())
	assert.False(t, now.Before(before.Truncate(time.Second)))
}

func TestAt(t *testing.T) {
	berlin := time.FixedZone("CEST", 2*60*60)
	c := clock.At(time.Date(2026, 6, 1, 12, 0, 0, 0, berlin))

	assert.Equal(t, time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC), c.Now())
	assert.Equal(t, c.Now(), c.Now())
}
