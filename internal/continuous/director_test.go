package continuous

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/hybridsim/internal/actor"
	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/integrators"
)

func eulerParams(start, stop, init, max float64) Parameters {
	p := DefaultParameters()
	p.StartTime = start
	p.StopTime = stop
	p.InitStepSize = init
	p.MaxStepSize = max
	p.Solver = integrators.KindForwardEuler
	return p
}

var _ = Describe("Director", func() {
	var (
		ctx      context.Context
		resolver *recordingResolver
	)

	BeforeEach(func() {
		ctx = context.Background()
		resolver = &recordingResolver{}
	})

	newDirector := func(p Parameters, schedule []actor.Actor, opts ...Option) *Director {
		d, err := New(p, schedule, resolver, opts...)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Initialize(ctx)).To(Succeed())
		return d
	}

	Describe("stepping to the stop time", func() {
		It("accepts two unit steps and stops exactly at the stop time", func() {
			d := newDirector(eulerParams(0, 2, 1, 1), nil)

			Expect(d.Fire(ctx)).To(Succeed())
			Expect(d.ModelTime().Float64()).To(Equal(1.0))
			cont, err := d.Postfire(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(cont).To(BeTrue())

			Expect(d.Fire(ctx)).To(Succeed())
			Expect(d.ModelTime().Float64()).To(Equal(2.0))
			cont, err = d.Postfire(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(cont).To(BeFalse())

			Expect(resolver.times).To(Equal([]float64{0, 1, 1, 2}))
			Expect(d.Breakpoints()).To(BeZero())
		})

		It("caps the step so it lands exactly on the next breakpoint", func() {
			d := newDirector(eulerParams(4.7, 5.0, 1.0, 1.0), nil)

			Expect(d.Fire(ctx)).To(Succeed())
			Expect(d.StepState().CurrentStepSize).To(Equal(0.3))
			Expect(d.ModelTime().Float64()).To(Equal(5.0))
		})

		It("suggests ten times the last step, bounded by maxStepSize and actors", func() {
			p := newScripted("p")
			p.suggested = 0.35
			d := newDirector(eulerParams(0, 10, 0.01, 1), []actor.Actor{p})

			Expect(d.Fire(ctx)).To(Succeed())
			_, err := d.Postfire(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.CurrentStepSize()).To(BeNumerically("~", 0.1, 1e-15))

			Expect(d.Fire(ctx)).To(Succeed())
			_, err = d.Postfire(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.CurrentStepSize()).To(Equal(0.35))
		})
	})

	Describe("rejected steps", func() {
		It("rolls back every stateful actor and retries with the smallest refinement", func() {
			a, b := newScripted("a"), newScripted("b")
			a.accurate, a.refined = []bool{false}, 0.25
			b.accurate, b.refined = []bool{false}, 0.5
			obs := &countingObserver{}
			d := newDirector(eulerParams(0, 10, 1, 1), []actor.Actor{a, b}, WithObserver(obs))

			Expect(d.Fire(ctx)).To(Succeed())

			Expect(d.ModelTime().Float64()).To(Equal(0.25))
			Expect(a.polls).To(Equal(2), "every controller is polled on every attempt")
			Expect(b.polls).To(Equal(2))
			Expect(a.rollbacks).To(Equal(1))
			Expect(b.rollbacks).To(Equal(1))
			Expect(obs.rejected).To(HaveLen(1))
			Expect(obs.rejected[0].Refined).To(Equal(0.25))
			Expect(obs.accepted).To(HaveLen(1))
			Expect(obs.accepted[0].Attempt).To(Equal(2))
		})

		It("retries at the resolution once before giving up", func() {
			p := newScripted("detector")
			p.accurate, p.refined = []bool{false, true}, 1e-12
			d := newDirector(eulerParams(0, 10, 1, 1), []actor.Actor{p})

			Expect(d.Fire(ctx)).To(Succeed())
			Expect(d.StepState().CurrentStepSize).To(Equal(1e-10))
			Expect(d.StepState().TriedMinimumStepSize).To(BeTrue())
		})

		It("fails when refined below the resolution twice in a row", func() {
			p := newScripted("detector")
			p.accurate, p.refined = []bool{false, false, false}, 1e-12
			d := newDirector(eulerParams(0, 10, 1, 1), []actor.Actor{p})

			err := d.Fire(ctx)
			Expect(err).To(MatchError(dynamo.ErrStepTooSmall))

			var simErr *dynamo.SimulationError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.Actor).To(Equal("detector"))
			Expect(simErr.StepSize).To(Equal(1e-10))
			Expect(p.rollbacks).To(Equal(1))
		})

		It("halves the step when the fixed point does not converge", func() {
			resolver.failOnCall = map[int]error{1: fmt.Errorf("%w: test", dynamo.ErrNotConverged)}
			obs := &countingObserver{}
			d := newDirector(eulerParams(0, 10, 1, 1), nil, WithObserver(obs))

			Expect(d.Fire(ctx)).To(Succeed())
			Expect(d.ModelTime().Float64()).To(Equal(0.5))
			Expect(obs.rejected).To(HaveLen(1))
		})

		It("surfaces other resolution errors as fatal", func() {
			boom := errors.New("boom")
			resolver.failOnCall = map[int]error{2: boom}
			d := newDirector(eulerParams(0, 10, 1, 1), nil)

			err := d.Fire(ctx)
			Expect(err).To(MatchError(boom))
			var simErr *dynamo.SimulationError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.Time.Float64()).To(Equal(1.0))
		})

		It("rejects an implicit step that hits maxIterations", func() {
			p := DefaultParameters()
			p.StopTime, p.InitStepSize, p.MaxStepSize = 10, 1, 1
			p.MaxIterations = 1
			obs := &countingObserver{}
			d, err := New(p, nil, resolver, WithSolver(integrators.NewBackwardEuler()), WithObserver(obs))
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Initialize(ctx)).To(Succeed())

			// One round never resolves an implicit step, so the director
			// halves down to the resolution and gives up.
			Expect(d.Fire(ctx)).To(MatchError(dynamo.ErrStepTooSmall))
			Expect(len(obs.rejected)).To(BeNumerically(">", 30))
		})

		It("requires an implicit step to converge before the last allowed round", func() {
			implicit := func(maxIter int) *Director {
				p := DefaultParameters()
				p.StopTime, p.InitStepSize, p.MaxStepSize = 10, 1, 1
				p.MaxIterations = maxIter
				d, err := New(p, nil, resolver, WithSolver(integrators.NewBackwardEuler()))
				Expect(err).NotTo(HaveOccurred())
				Expect(d.Initialize(ctx)).To(Succeed())
				return d
			}

			// With nothing to integrate the corrector converges on round two.
			Expect(implicit(2).Fire(ctx)).To(MatchError(dynamo.ErrStepTooSmall))

			d := implicit(3)
			Expect(d.Fire(ctx)).To(Succeed())
			Expect(d.StepState().RoundCount).To(Equal(2))
			Expect(d.ModelTime().Float64()).To(Equal(1.0))
		})

		It("fails a zero-width step whose fixed point does not converge", func() {
			p := newScripted("event")
			p.onPostfire = func(p *scripted, t dynamo.Time) (bool, error) {
				if len(p.postfires) == 1 {
					return true, p.director.FireAt(p, t)
				}
				return true, nil
			}
			// Calls 1 and 2 are the two euler rounds of the first step.
			resolver.failOnCall = map[int]error{3: fmt.Errorf("%w: test", dynamo.ErrNotConverged)}
			obs := &countingObserver{}
			d := newDirector(eulerParams(0, 10, 1, 1), []actor.Actor{p}, WithObserver(obs))

			Expect(d.Fire(ctx)).To(Succeed())
			_, err := d.Postfire(ctx)
			Expect(err).NotTo(HaveOccurred())

			err = d.Fire(ctx)
			Expect(err).To(MatchError(dynamo.ErrNotConverged))
			var simErr *dynamo.SimulationError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.Time.Float64()).To(Equal(1.0))
			Expect(simErr.StepSize).To(BeZero())
			Expect(obs.accepted).To(HaveLen(1))
			Expect(obs.rejected).To(BeEmpty())
			Expect(p.postfires).To(HaveLen(1))
		})
	})

	Describe("breakpoints", func() {
		It("refuses refire requests in the past", func() {
			p := newScripted("late")
			d := newDirector(eulerParams(0, 10, 1, 1), []actor.Actor{p})
			Expect(d.Fire(ctx)).To(Succeed())

			err := d.FireAt(p, d.Resolution().Time(0.5))
			Expect(err).To(MatchError(dynamo.ErrCausality))
			var simErr *dynamo.SimulationError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.Actor).To(Equal("late"))
		})

		It("accepts a refire request for the current time once", func() {
			p := newScripted("now")
			d := newDirector(eulerParams(0, 10, 1, 1), []actor.Actor{p})
			before := d.Breakpoints()

			Expect(d.FireAt(p, d.ModelTime())).To(Succeed())
			Expect(d.FireAt(p, d.ModelTime())).To(Succeed())
			Expect(d.Breakpoints()).To(Equal(before + 1))
		})

		It("runs a zero-width step for a request made while postfiring", func() {
			p := newScripted("event")
			requested := false
			p.onPostfire = func(p *scripted, t dynamo.Time) (bool, error) {
				if !requested {
					requested = true
					return true, p.director.FireAt(p, t)
				}
				return true, nil
			}
			d := newDirector(eulerParams(0, 10, 1, 1), []actor.Actor{p})

			Expect(d.Fire(ctx)).To(Succeed())
			_, err := d.Postfire(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(d.Fire(ctx)).To(Succeed())
			Expect(d.ModelTime().Float64()).To(Equal(1.0))
			Expect(d.StepState().CurrentStepSize).To(BeZero())
			Expect(p.fires[len(p.fires)-1]).To(Equal(1.0))

			_, err = d.Postfire(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.CurrentStepSize()).To(Equal(1.0), "after a zero-width step the initial step size is used")
		})

		It("keeps going at the stop time while a breakpoint remains there", func() {
			p := newScripted("final")
			p.onPostfire = func(p *scripted, t dynamo.Time) (bool, error) {
				if t.Float64() == 2 && len(p.postfires) == 2 {
					return true, p.director.FireAt(p, t)
				}
				return true, nil
			}
			d := newDirector(eulerParams(0, 2, 1, 1), []actor.Actor{p})

			var conts []bool
			for i := 0; i < 3; i++ {
				Expect(d.Fire(ctx)).To(Succeed())
				cont, err := d.Postfire(ctx)
				Expect(err).NotTo(HaveOccurred())
				conts = append(conts, cont)
			}
			Expect(conts).To(Equal([]bool{true, true, false}))
			Expect(p.postfires).To(Equal([]float64{1, 2, 2}))
		})

		It("stops when an actor asks to", func() {
			p := newScripted("quit")
			p.onPostfire = func(*scripted, dynamo.Time) (bool, error) { return false, nil }
			d := newDirector(eulerParams(0, 10, 1, 1), []actor.Actor{p})

			Expect(d.Fire(ctx)).To(Succeed())
			cont, err := d.Postfire(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(cont).To(BeFalse())
		})
	})

	Describe("embedding", func() {
		It("starts at the outer time and asks the outer director to refire", func() {
			outer := &fakeOuter{}
			outer.now = dynamo.MustResolution(dynamo.DefaultResolution).Time(3)
			d := newDirector(eulerParams(0, 10, 1, 1), nil, WithOuter(outer))

			Expect(d.ModelTime().Float64()).To(Equal(3.0))
			Expect(outer.refires).To(Equal([]float64{10}))

			Expect(d.Fire(ctx)).To(Succeed())
			_, err := d.Postfire(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(outer.refires).To(Equal([]float64{10, 10}))
		})

		It("reports an overshoot of the stop time as fatal", func() {
			outer := &fakeOuter{}
			outer.now = dynamo.MustResolution(dynamo.DefaultResolution).Time(5)
			d := newDirector(eulerParams(0, 2, 1, 1), nil, WithOuter(outer))

			Expect(d.Fire(ctx)).To(Succeed())
			_, err := d.Postfire(ctx)
			Expect(err).To(MatchError(dynamo.ErrOvershoot))
		})
	})

	Describe("real-time pacing", func() {
		var clock *fakeClock

		BeforeEach(func() {
			clock = &fakeClock{now: time.Unix(0, 0)}
		})

		paced := func(step float64) *Director {
			p := eulerParams(0, 10, step, step)
			p.SynchronizeToRealTime = true
			return newDirector(p, nil, WithClock(clock))
		}

		It("does not sleep while the model is ahead by less than the threshold", func() {
			d := paced(0.01)
			Expect(d.Fire(ctx)).To(Succeed())
			_, err := d.Postfire(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(clock.sleeps).To(BeEmpty())
		})

		It("sleeps until the wall clock catches up", func() {
			d := paced(0.5)
			Expect(d.Fire(ctx)).To(Succeed())
			_, err := d.Postfire(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(clock.sleeps).To(HaveLen(1))
			Expect(clock.sleeps[0]).To(BeNumerically("~", 500*time.Millisecond, time.Microsecond))
		})

		It("never sleeps when the model is behind the wall clock", func() {
			d := paced(0.5)
			clock.now = clock.now.Add(2 * time.Second)
			Expect(d.Fire(ctx)).To(Succeed())
			_, err := d.Postfire(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(clock.sleeps).To(BeEmpty())
		})
	})

	Describe("cancellation", func() {
		It("abandons the step without error wrapping", func() {
			d := newDirector(eulerParams(0, 10, 1, 1), nil)
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			Expect(d.Fire(cctx)).To(MatchError(context.Canceled))
			Expect(resolver.times).To(BeEmpty())

			_, err := d.Postfire(cctx)
			Expect(err).To(MatchError(context.Canceled))
		})

		It("stops between rounds when an actor cancels while firing", func() {
			cctx, cancel := context.WithCancel(ctx)
			defer cancel()
			p := newScripted("canceller")
			p.onFire = func(dynamo.Time) { cancel() }
			d := newDirector(eulerParams(0, 10, 1, 1), []actor.Actor{p})

			Expect(d.Fire(cctx)).To(MatchError(context.Canceled))
			Expect(resolver.times).To(Equal([]float64{0}))
			Expect(p.fires).To(Equal([]float64{0}))
			Expect(p.polls).To(BeZero())
		})

		It("stops polling controllers once cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			defer cancel()
			a, b := newScripted("a"), newScripted("b")
			a.onPoll = cancel
			d := newDirector(eulerParams(0, 10, 1, 1), []actor.Actor{a, b})

			Expect(d.Fire(cctx)).To(MatchError(context.Canceled))
			Expect(a.polls).To(Equal(1))
			Expect(b.polls).To(BeZero())
			Expect(a.rollbacks + b.rollbacks).To(BeZero())
		})

		It("stops rolling back once cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			defer cancel()
			a, b := newScripted("a"), newScripted("b")
			a.accurate, a.refined = []bool{false}, 0.5
			a.onRollBack = cancel
			obs := &countingObserver{}
			d := newDirector(eulerParams(0, 10, 1, 1), []actor.Actor{a, b}, WithObserver(obs))

			Expect(d.Fire(cctx)).To(MatchError(context.Canceled))
			Expect(a.rollbacks).To(Equal(1))
			Expect(b.rollbacks).To(BeZero())
			Expect(b.polls).To(Equal(1))
			Expect(obs.rejected).To(HaveLen(1))
			Expect(obs.accepted).To(BeEmpty())
		})
	})

	DescribeTable("configuration errors",
		func(mutate func(*Parameters)) {
			p := DefaultParameters()
			mutate(&p)
			_, err := New(p, nil, resolver)
			Expect(err).To(MatchError(dynamo.ErrConfig))
		},
		Entry("negative error tolerance", func(p *Parameters) { p.ErrorTolerance = -1 }),
		Entry("negative initial step", func(p *Parameters) { p.InitStepSize = -0.1 }),
		Entry("negative maximum step", func(p *Parameters) { p.MaxStepSize = -1 }),
		Entry("infinite initial step", func(p *Parameters) { p.InitStepSize = math.Inf(1) }),
		Entry("infinite maximum step", func(p *Parameters) { p.MaxStepSize = math.Inf(1) }),
		Entry("zero iterations", func(p *Parameters) { p.MaxIterations = 0 }),
		Entry("stop before start", func(p *Parameters) { p.StartTime, p.StopTime = 2, 1 }),
		Entry("bad resolution", func(p *Parameters) { p.TimeResolution = 0 }),
		Entry("unknown solver", func(p *Parameters) { p.Solver = integrators.Kind(42) }),
		Entry("solver needs more rounds than allowed", func(p *Parameters) {
			p.Solver = integrators.KindRK45
			p.MaxIterations = 5
		}),
	)

	It("accepts an unbounded stop time", func() {
		p := eulerParams(0, math.Inf(1), 1, 1)
		d := newDirector(p, nil)
		Expect(d.ModelStopTime().IsInfinite()).To(BeTrue())
		Expect(d.Breakpoints()).To(BeZero())
	})
})
