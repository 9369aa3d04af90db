package integrators

// Bogacki-Shampine coefficients (RK23)
var rk23Tableau = &tableau{
	name: "rk23",
	c:    []float64{0, 1.0 / 2.0, 3.0 / 4.0, 1},
	a: [][]float64{
		nil,
		{1.0 / 2.0},
		{0, 3.0 / 4.0},
		{2.0 / 9.0, 1.0 / 3.0, 4.0 / 9.0},
	},
	e: []float64{
		2.0/9.0 - 7.0/24.0,
		1.0/3.0 - 1.0/4.0,
		4.0/9.0 - 1.0/3.0,
		-1.0 / 8.0,
	},
	order: 3,
}

func NewRK23() *Explicit {
	return newExplicit(rk23Tableau)
}
