package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ogulcanaydogan/finalert/pkg/clock"
)

func TestFake_Advance(t *testing.T) {
	start := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	c := clock.NewFake(start)
	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Minute)
	assert.Equal(t, start.Add(90*time.Minute), c.Now())
}

func TestSystem_UTC(t *testing.T) {
	assert.Equal(t, time.UTC, clock.System{}.Now().Location())
}
