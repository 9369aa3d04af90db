package viz

import (
	"context"
	"fmt"
	"maps"
	"math"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/hybridsim/internal/dynamo"
	"github.com/san-kum/hybridsim/internal/experiment"
	"github.com/san-kum/hybridsim/internal/sim"
)

const (
	graphWidth      = 60
	graphHeight     = 12
	historyCapacity = 600
)

// StepMsg carries the recorded signals of one accepted step.
type StepMsg struct {
	T      float64
	Values map[string]float64
}

// DoneMsg ends the run.
type DoneMsg struct {
	Result *dynamo.Result
	Err    error
}

// Gate pauses a running simulation between steps.
type Gate struct {
	mu     sync.Mutex
	paused bool
	resume chan struct{}
}

// Toggle flips the gate and reports whether it is now paused.
func (g *Gate) Toggle() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		close(g.resume)
	} else {
		g.resume = make(chan struct{})
	}
	g.paused = !g.paused
	return g.paused
}

// Wait blocks while the gate is paused.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	if !g.paused {
		g.mu.Unlock()
		return nil
	}
	resume := g.resume
	g.mu.Unlock()

	select {
	case <-resume:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Live is the Bubble Tea model of a running simulation.
type Live struct {
	name     string
	signals  []string
	stop     float64
	theme    Theme
	gate     *Gate
	cancel   context.CancelFunc
	canvas   *Canvas
	t        float64
	steps    int
	times    []float64
	history  map[string][]float64
	selected int
	phase    bool
	paused   bool
	done     bool
	result   *dynamo.Result
	err      error
}

// NewLive returns a view of the given signals. cancel, when non-nil, is
// called on quit to interrupt the simulation.
func NewLive(name string, signals []string, stop float64, gate *Gate, cancel context.CancelFunc) Live {
	h := make(map[string][]float64, len(signals))
	for _, s := range signals {
		h[s] = make([]float64, 0, historyCapacity)
	}
	return Live{
		name:    name,
		signals: signals,
		stop:    stop,
		theme:   Themes[0],
		gate:    gate,
		cancel:  cancel,
		canvas:  NewCanvas(graphWidth/2, graphHeight/2),
		history: h,
	}
}

// WithTheme returns l using theme t.
func (l Live) WithTheme(t Theme) Live {
	l.theme = t
	return l
}

func (l Live) Init() tea.Cmd { return nil }

func (l Live) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if l.cancel != nil {
				l.cancel()
			}
			return l, tea.Quit
		case " ":
			if l.gate != nil && !l.done {
				l.paused = l.gate.Toggle()
			}
		case "tab":
			if len(l.signals) > 0 {
				l.selected = (l.selected + 1) % len(l.signals)
			}
		case "p":
			l.phase = !l.phase && len(l.signals) > 1
		case "t":
			l.theme = l.theme.next()
		}
	case StepMsg:
		l.t = msg.T
		l.steps++
		l.times = appendCapped(l.times, msg.T)
		for _, s := range l.signals {
			v, ok := msg.Values[s]
			if !ok {
				v = math.NaN()
			}
			l.history[s] = appendCapped(l.history[s], v)
		}
	case DoneMsg:
		l.done, l.result, l.err = true, msg.Result, msg.Err
		if msg.Result != nil {
			l.t = msg.Result.FinalTime
		}
	}
	return l, nil
}

func appendCapped(s []float64, v float64) []float64 {
	if len(s) == historyCapacity {
		copy(s, s[1:])
		s = s[:len(s)-1]
	}
	return append(s, v)
}

func (l Live) View() string {
	st := l.theme.styles()
	var s strings.Builder

	s.WriteString(st.header.Render(strings.ToUpper(l.name)) + "\n")
	s.WriteString(l.status(st) + "\n\n")
	s.WriteString(l.graph(st) + "\n")

	row := func(label, value string) {
		s.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}
	row("time", fmt.Sprintf("%.4f", l.t))
	if !math.IsInf(l.stop, 1) && l.stop > 0 {
		row("progress", l.theme.ProgressBar(l.t/l.stop, 30))
	}
	row("steps", fmt.Sprintf("%d", l.steps))
	if l.result != nil {
		row("rejections", fmt.Sprintf("%d", l.result.Rejections))
	}

	s.WriteString("\n")
	for i, name := range l.signals {
		line := fmt.Sprintf("%-12s %s", name, formatLast(l.history[name]))
		if i == l.selected {
			s.WriteString(st.active.Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + st.value.Render(line) + "\n")
		}
	}
	s.WriteString(st.muted.Render("\nSPACE:pause TAB:signal P:phase T:theme Q:quit"))
	return st.panel.Render(s.String())
}

func (l Live) status(st styles) string {
	switch {
	case l.err != nil:
		return st.failed.Render("FAILED: " + l.err.Error())
	case l.done && l.result != nil && l.result.Interrupted:
		return st.paused.Render("INTERRUPTED")
	case l.done:
		return st.done.Render("FINISHED")
	case l.paused:
		return st.paused.Render("PAUSED")
	default:
		return st.running.Render("RUNNING")
	}
}

func (l Live) graph(st styles) string {
	if len(l.signals) == 0 {
		return st.muted.Render("(no recorded signals)")
	}
	if l.phase {
		x, y := l.signals[l.selected], l.signals[(l.selected+1)%len(l.signals)]
		l.canvas.Trajectory(l.history[x], l.history[y])
		return st.graph.Render(l.canvas.String()) + "\n" + st.muted.Render(fmt.Sprintf("%s vs %s", y, x))
	}

	name := l.signals[l.selected]
	data := finiteOnly(l.history[name])
	if len(data) < 2 {
		return st.muted.Render("(waiting for " + name + ")")
	}
	chart := asciigraph.Plot(data,
		asciigraph.Height(graphHeight),
		asciigraph.Width(graphWidth),
		asciigraph.Caption(name))
	return st.graph.Render(chart)
}

func finiteOnly(vs []float64) []float64 {
	out := make([]float64, 0, len(vs))
	for _, v := range vs {
		if finite(v) {
			out = append(out, v)
		}
	}
	return out
}

func formatLast(vs []float64) string {
	for i := len(vs) - 1; i >= 0; i-- {
		if finite(vs[i]) {
			return fmt.Sprintf("%.6g", vs[i])
		}
	}
	return "-"
}

// Run runs the model under the live view until the user quits. Quitting
// before the run ends interrupts it; the partial result is returned.
func Run(ctx context.Context, m *experiment.Model, theme Theme, opts ...sim.Option) (*dynamo.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var signals []string
	for _, tr := range m.Recorder.Traces() {
		signals = append(signals, tr.Name)
	}

	gate := &Gate{}
	p := tea.NewProgram(NewLive(m.Name, signals, m.Parameters.StopTime, gate, cancel).WithTheme(theme), tea.WithAltScreen())

	done := make(chan DoneMsg, 1)
	go func() {
		s := sim.New(m, opts...)
		res, err := s.RunWithCallback(ctx, func(t float64, values map[string]float64) bool {
			if gate.Wait(ctx) != nil {
				return false
			}
			p.Send(StepMsg{T: t, Values: maps.Clone(values)})
			return true
		})
		msg := DoneMsg{Result: res, Err: err}
		done <- msg
		p.Send(msg)
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("live view: %w", err)
	}
	cancel()
	msg := <-done
	return msg.Result, msg.Err
}
