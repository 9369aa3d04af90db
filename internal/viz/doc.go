// Package viz renders simulation runs in the terminal.
//
// [Live] is a Bubble Tea model fed by a running simulation: it graphs the
// history of one recorded signal with asciigraph, or the phase portrait of
// two signals on a Braille [Canvas]. [Summary] renders a finished run.
//
// # Key Bindings
//
//	Space - Pause/Resume the run
//	Tab   - Cycle the graphed signal
//	P     - Toggle the phase portrait
//	T     - Cycle color themes
//	Q     - Quit (interrupts a running simulation)
package viz
