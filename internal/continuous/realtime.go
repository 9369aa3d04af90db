package continuous

import (
	"context"
	"time"

	"github.com/san-kum/hybridsim/internal/dynamo"
)

// syncThreshold is the scheduling noise below which pacing does not sleep.
const syncThreshold = 20 * time.Millisecond

// Clock is the wall clock used for real-time pacing.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// pacer holds model time back to wall-clock time.
type pacer struct {
	clock      Clock
	realStart  time.Time
	modelStart dynamo.Time
}

func (p *pacer) start(t dynamo.Time) {
	p.realStart = p.clock.Now()
	p.modelStart = t
}

// sync sleeps until wall-clock time elapsed since start catches up with
// model time elapsed, and returns how long it slept. It never sleeps when
// the model is behind the wall clock.
func (p *pacer) sync(ctx context.Context, now dynamo.Time) (time.Duration, error) {
	modelElapsed := time.Duration(now.Sub(p.modelStart) * float64(time.Second))
	ahead := modelElapsed - p.clock.Now().Sub(p.realStart)
	if ahead <= syncThreshold {
		return 0, nil
	}
	return ahead, p.clock.Sleep(ctx, ahead)
}
