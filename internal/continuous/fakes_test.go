package continuous

import (
	"context"
	"time"

	"github.com/san-kum/hybridsim/internal/actor"
	"github.com/san-kum/hybridsim/internal/dynamo"
)

// recordingResolver records every time point it is asked to resolve.
type recordingResolver struct {
	times      []float64
	failOnCall map[int]error
}

func (r *recordingResolver) Resolve(ctx context.Context, t dynamo.Time, schedule []actor.Actor) error {
	r.times = append(r.times, t.Float64())
	if err, ok := r.failOnCall[len(r.times)]; ok {
		return err
	}
	for _, a := range schedule {
		if ok, err := a.Prefire(t); err != nil || !ok {
			continue
		}
		if err := a.Fire(t); err != nil {
			return err
		}
	}
	return nil
}

// scripted is a test actor driven by hooks. Each IsStepSizeAccurate call consumes one
// entry of accurate; once exhausted it reports accurate.
type scripted struct {
	name      string
	accurate  []bool
	refined   float64
	suggested float64

	director   actor.Director
	onFire     func(t dynamo.Time)
	onPoll     func()
	onRollBack func()
	onPostfire func(p *scripted, t dynamo.Time) (bool, error)

	polls     int
	rollbacks int
	fires     []float64
	postfires []float64
}

func newScripted(name string) *scripted {
	return &scripted{name: name, refined: 1e9, suggested: 1e9}
}

func (p *scripted) Name() string { return p.name }

func (p *scripted) Initialize(d actor.Director) error {
	p.director = d
	return nil
}

func (p *scripted) Prefire(dynamo.Time) (bool, error) { return true, nil }

func (p *scripted) Fire(t dynamo.Time) error {
	p.fires = append(p.fires, t.Float64())
	if p.onFire != nil {
		p.onFire(t)
	}
	return nil
}

func (p *scripted) Postfire(t dynamo.Time) (bool, error) {
	p.postfires = append(p.postfires, t.Float64())
	if p.onPostfire != nil {
		return p.onPostfire(p, t)
	}
	return true, nil
}

func (p *scripted) IsStepSizeAccurate() bool {
	p.polls++
	if p.onPoll != nil {
		p.onPoll()
	}
	if len(p.accurate) == 0 {
		return true
	}
	ok := p.accurate[0]
	p.accurate = p.accurate[1:]
	return ok
}

func (p *scripted) RefinedStepSize() float64   { return p.refined }
func (p *scripted) SuggestedStepSize() float64 { return p.suggested }
func (p *scripted) RollBackToCommittedState() {
	p.rollbacks++
	if p.onRollBack != nil {
		p.onRollBack()
	}
}

type countingObserver struct {
	accepted []StepInfo
	rejected []StepInfo
}

func (o *countingObserver) StepAccepted(info StepInfo) { o.accepted = append(o.accepted, info) }
func (o *countingObserver) StepRejected(info StepInfo) { o.rejected = append(o.rejected, info) }

// fakeClock advances only when told to or when slept on.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return ctx.Err()
}

type fakeOuter struct {
	now     dynamo.Time
	refires []float64
}

func (o *fakeOuter) ModelTime() dynamo.Time { return o.now }

func (o *fakeOuter) FireAt(t dynamo.Time) error {
	o.refires = append(o.refires, t.Float64())
	return nil
}
