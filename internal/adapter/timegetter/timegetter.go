// Package timegetter contains the default [domain.TimeGetter] implementation.
package timegetter

import (
	"time"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
)

// TimeGetter implements [domain.TimeGetter] with the wall clock.
type TimeGetter struct{}

// NewTimeGetter returns a new implementation of domain.TimeGetter.
func NewTimeGetter() domain.TimeGetter {
	return &TimeGetter{}
}

// GetTime implements [domain.TimeGetter].
func (t *TimeGetter) GetTime() time.Time {
	return time.Now()
}

// Fixed implements [domain.TimeGetter] with a clock that never moves.
type Fixed time.Time

// GetTime implements [domain.TimeGetter].
func (f Fixed) GetTime() time.Time {
	return time.Time(f)
}
