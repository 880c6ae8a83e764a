package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealTimeProvider(t *testing.T) {
	tp := &RealTimeProvider{}
	before := time.Now()
	got := tp.Now()
	assert.False(t, got.Before(before))
}

func TestFixedTimeProvider(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tp := NewFixedTimeProvider(base)

	assert.Equal(t, base, tp.Now())

	tp.AddTime(5 * time.Minute)
	assert.Equal(t, base.Add(5*time.Minute), tp.Now())

	later := base.Add(time.Hour)
	tp.SetTime(later)
	assert.Equal(t, later, tp.Now())
}
