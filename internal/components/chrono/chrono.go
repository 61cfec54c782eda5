package chrono

import (
	"context"
	"math/rand"
	"time"
)

// API is the interface anything that needs the current time or needs to
// wait should depend on, it lets tests run without real sleeps.
//
// note: fault injection point
type API interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, whichever happens first.
	Sleep(ctx context.Context, d time.Duration) error
}

type StandardImpl struct {
	location *time.Location
}

// NewStandardImpl creates a StandardImpl that reports time in the given
// IANA location (ex. America/New_York).
func NewStandardImpl(location string) (StandardImpl, error) {
	loc, err := time.LoadLocation(location)
	if err != nil {
		return StandardImpl{}, err
	}
	return StandardImpl{location: loc}, nil
}

func (s StandardImpl) Now() time.Time {
	if s.location == nil {
		return time.Now()
	}
	return time.Now().In(s.location)
}

func (StandardImpl) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pacer waits a random duration between Min and Max, it is used to space out
// page visits so the remote site is not hammered.
type Pacer struct {
	Min   time.Duration
	Max   time.Duration
	Clock API
	rand  *rand.Rand
}

func NewPacer(min, max time.Duration, clock API) *Pacer {
	if max < min {
		min, max = max, min
	}
	return &Pacer{
		Min:   min,
		Max:   max,
		Clock: clock,
		rand:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the next random delay in [Min, Max].
func (p *Pacer) Next() time.Duration {
	span := p.Max - p.Min
	if span <= 0 {
		return p.Min
	}
	return p.Min + time.Duration(p.rand.Int63n(int64(span)+1))
}

func (p *Pacer) Wait(ctx context.Context) error {
	return p.Clock.Sleep(ctx, p.Next())
}
