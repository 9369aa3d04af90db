// Package dynamo provides the primitives shared by every part of the
// hybrid simulator:
//
//   - [Time]: model time quantized to a [Resolution], exact under addition
//   - [Result] and [Trace]: what a finished run reports
//   - sentinel errors and [SimulationError], which carries the model time,
//     step size and actor a fatal condition was detected at
//
// # Example
//
//	res := dynamo.MustResolution(1e-10)
//	t := res.Time(4.7)
//	h := res.Time(5.0).Sub(t) // 0.3
package dynamo
