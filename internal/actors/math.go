package actors

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/san-kum/hybridsim/internal/actor"
	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/fixedpoint"
)

// Gain emits k times its input. An absent input gives an absent output, so
// a Gain may scale events as well as continuous signals.
type Gain struct {
	base
	in, out *fixedpoint.Signal
	k       float64
}

func NewGain(name string, in, out *fixedpoint.Signal, k float64) *Gain {
	return &Gain{base: base{name: name}, in: in, out: out, k: k}
}

func (g *Gain) Initialize(d actor.Director) error {
	g.director = d
	return requireSignals(g.name, g.in, g.out)
}

func (g *Gain) Fire(dynamo.Time) error {
	v, ok := g.in.Get()
	if !ok {
		return nil
	}
	return g.out.Set(g.k * v)
}

// Sum emits the sum of its inputs once all of them are known.
type Sum struct {
	base
	ins []*fixedpoint.Signal
	out *fixedpoint.Signal
}

func NewSum(name string, out *fixedpoint.Signal, ins ...*fixedpoint.Signal) *Sum {
	return &Sum{base: base{name: name}, ins: ins, out: out}
}

func (s *Sum) Initialize(d actor.Director) error {
	s.director = d
	if len(s.ins) == 0 {
		return fmt.Errorf("%w: %s: no inputs", dynamo.ErrConfig, s.name)
	}
	return requireSignals(s.name, append([]*fixedpoint.Signal{s.out}, s.ins...)...)
}

func (s *Sum) Fire(dynamo.Time) error {
	vals, ok := allKnown(s.ins)
	if !ok {
		return nil
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return s.out.Set(sum)
}

// Product emits the product of its inputs once all of them are known.
type Product struct {
	base
	ins []*fixedpoint.Signal
	out *fixedpoint.Signal
}

func NewProduct(name string, out *fixedpoint.Signal, ins ...*fixedpoint.Signal) *Product {
	return &Product{base: base{name: name}, ins: ins, out: out}
}

func (p *Product) Initialize(d actor.Director) error {
	p.director = d
	if len(p.ins) == 0 {
		return fmt.Errorf("%w: %s: no inputs", dynamo.ErrConfig, p.name)
	}
	return requireSignals(p.name, append([]*fixedpoint.Signal{p.out}, p.ins...)...)
}

func (p *Product) Fire(dynamo.Time) error {
	vals, ok := allKnown(p.ins)
	if !ok {
		return nil
	}
	prod := 1.0
	for _, v := range vals {
		prod *= v
	}
	return p.out.Set(prod)
}

var unaryOps = map[string]func(float64) float64{
	"abs":    math.Abs,
	"neg":    func(x float64) float64 { return -x },
	"square": func(x float64) float64 { return x * x },
	"sqrt":   math.Sqrt,
	"exp":    math.Exp,
	"log":    math.Log,
	"sin":    math.Sin,
	"cos":    math.Cos,
	"tanh":   math.Tanh,
	"sign": func(x float64) float64 {
		switch {
		case x > 0:
			return 1
		case x < 0:
			return -1
		}
		return 0
	},
}

var binaryOps = map[string]func(a, b float64) float64{
	"sub":   func(a, b float64) float64 { return a - b },
	"div":   func(a, b float64) float64 { return a / b },
	"pow":   math.Pow,
	"min":   math.Min,
	"max":   math.Max,
	"atan2": math.Atan2,
}

// FunctionOps lists the operations a Function block accepts.
func FunctionOps() []string {
	ops := make([]string, 0, len(unaryOps)+len(binaryOps))
	for op := range unaryOps {
		ops = append(ops, op)
	}
	for op := range binaryOps {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Function applies a named math operation to one or two inputs.
type Function struct {
	base
	op     string
	ins    []*fixedpoint.Signal
	out    *fixedpoint.Signal
	unary  func(float64) float64
	binary func(a, b float64) float64
}

func NewFunction(name, op string, out *fixedpoint.Signal, ins ...*fixedpoint.Signal) (*Function, error) {
	f := &Function{base: base{name: name}, op: op, ins: ins, out: out}
	if fn, ok := unaryOps[op]; ok {
		f.unary = fn
		if len(ins) != 1 {
			return nil, fmt.Errorf("%w: %s: %s takes 1 input, got %d", dynamo.ErrConfig, name, op, len(ins))
		}
		return f, nil
	}
	if fn, ok := binaryOps[op]; ok {
		f.binary = fn
		if len(ins) != 2 {
			return nil, fmt.Errorf("%w: %s: %s takes 2 inputs, got %d", dynamo.ErrConfig, name, op, len(ins))
		}
		return f, nil
	}
	return nil, fmt.Errorf("%w: %s: unknown function %q (want one of %v)", dynamo.ErrConfig, name, op, FunctionOps())
}

func (f *Function) Initialize(d actor.Director) error {
	f.director = d
	return requireSignals(f.name, slices.Concat([]*fixedpoint.Signal{f.out}, f.ins)...)
}

func (f *Function) Fire(dynamo.Time) error {
	vals, ok := allKnown(f.ins)
	if !ok {
		return nil
	}
	if f.unary != nil {
		return f.out.Set(f.unary(vals[0]))
	}
	return f.out.Set(f.binary(vals[0], vals[1]))
}
