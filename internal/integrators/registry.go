package integrators

import (
	"fmt"
	"strings"

	"github.com/san-kum/hybridsim/internal/dynamo"
)

// Kind selects a solver strategy.
type Kind int

const (
	KindForwardEuler Kind = iota
	KindRK23
	KindRK45
	KindBackwardEuler
	KindTrapezoidal
)

var kindNames = map[Kind]string{
	KindForwardEuler:  "forward_euler",
	KindRK23:          "rk23",
	KindRK45:          "rk45",
	KindBackwardEuler: "backward_euler",
	KindTrapezoidal:   "trapezoidal",
}

var aliases = map[string]Kind{
	"euler":              KindForwardEuler,
	"explicit_rk23":      KindRK23,
	"explicit_rk45":      KindRK45,
	"dormand_prince":     KindRK45,
	"implicit_euler":     KindBackwardEuler,
	"trapezoidal_rule":   KindTrapezoidal,
	"trapezoidal_method": KindTrapezoidal,
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind resolves a solver name, case-insensitively.
func ParseKind(name string) (Kind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for k, kn := range kindNames {
		if kn == n {
			return k, nil
		}
	}
	if k, ok := aliases[n]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("%w: %q", dynamo.ErrUnknownSolver, name)
}

// New returns a fresh solver of kind k.
func New(k Kind) (Solver, error) {
	switch k {
	case KindForwardEuler:
		return NewForwardEuler(), nil
	case KindRK23:
		return NewRK23(), nil
	case KindRK45:
		return NewRK45(), nil
	case KindBackwardEuler:
		return NewBackwardEuler(), nil
	case KindTrapezoidal:
		return NewTrapezoidal(), nil
	}
	return nil, fmt.Errorf("%w: %v", dynamo.ErrUnknownSolver, k)
}

// Names lists the canonical solver names in Kind order.
func Names() []string {
	names := make([]string, 0, len(kindNames))
	for k := KindForwardEuler; k <= KindTrapezoidal; k++ {
		names = append(names, kindNames[k])
	}
	return names
}
