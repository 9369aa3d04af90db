package integrators

var forwardEulerTableau = &tableau{
	name: "forward_euler",
	c:    []float64{0, 1},
	a: [][]float64{
		nil,
		{1},
	},
	order: 1,
}

// NewForwardEuler returns the explicit Euler method. It has no error
// estimate, so every step is accurate and the step size is governed by
// the director's limits and other actors.
func NewForwardEuler() *Explicit {
	return newExplicit(forwardEulerTableau)
}
