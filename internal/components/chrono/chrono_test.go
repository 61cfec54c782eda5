package chrono

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPacerStaysInBounds(t *testing.T) {
	clock := NewFakeClock(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC))
	pacer := NewPacer(5*time.Second, 8*time.Second, clock)

	for i := 0; i < 200; i++ {
		require.NoError(t, pacer.Wait(context.Background()))
	}
	require.Len(t, clock.Sleeps, 200)
	for _, d := range clock.Sleeps {
		require.GreaterOrEqual(t, d, 5*time.Second)
		require.LessOrEqual(t, d, 8*time.Second)
	}
}

func TestPacerSwappedBounds(t *testing.T) {
	pacer := NewPacer(3*time.Second, time.Second, NewFakeClock(time.Time{}))
	require.Equal(t, time.Second, pacer.Min)
	require.Equal(t, 3*time.Second, pacer.Max)
}

func TestSleepHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := StandardImpl{}.Sleep(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}
