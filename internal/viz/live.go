package viz

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/harmonica"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/hoversim/internal/control"
	"github.com/san-kum/hoversim/internal/dynamo"
	"github.com/san-kum/hoversim/internal/physics"
	"github.com/san-kum/hoversim/internal/sim"
)

const (
	canvasCols = 60
	canvasRows = 24

	heightHistory = 300
	// longest frame fed to the simulation; slower frames are treated as this
	maxFrame = 100 * time.Millisecond

	gainStep      = 1.1
	setpointStep  = 1.0
	manualStep    = 5.0
	arrowDotsPerN = 1.5

	// envPrefix marks tunable keys that belong to the environment
	envPrefix = "env."
)

// envTunables are the environment constants offered next to the gains.
var envTunables = []string{"sensor_std"}

type TickMsg time.Time

// Model is the live hover view. It owns the clock the runner reads and moves
// it by the real frame time, so pausing freezes simulated time.
type Model struct {
	runner *sim.Runner
	clock  *dynamo.ManualClock
	env    *physics.ParticleEnv
	tuner  dynamo.Configurable
	manual *control.ManualController

	paramKeys []string
	initial   map[string]float64
	selected  int

	canvas   *Canvas
	interval time.Duration
	lastTick time.Time

	running bool
	done    bool
	err     error
	last    dynamo.Sample
	heights []float64

	spring    harmonica.Spring
	marker    float64
	markerVel float64

	snapshotDir string
	note        string
}

// NewModel wraps a runner whose environment and controller read clock. The
// runner is reset immediately.
func NewModel(r *sim.Runner, clock *dynamo.ManualClock) Model {
	m := Model{
		runner:   r,
		clock:    clock,
		canvas:   NewCanvas(canvasCols, canvasRows),
		interval: dynamo.Seconds(r.Config().Dt),
		running:  true,
		heights:  make([]float64, 0, heightHistory),
		initial:  make(map[string]float64),
	}
	if m.interval <= 0 {
		m.interval = time.Second / 60
	}
	fps := int(time.Second / m.interval)
	m.spring = harmonica.NewSpring(harmonica.FPS(fps), 6.0, 0.7)

	m.env, _ = r.Env().(*physics.ParticleEnv)
	switch c := r.Controller().(type) {
	case *control.ManualController:
		m.manual = c
	case dynamo.Configurable:
		m.tuner = c
		for k, v := range c.GetParams() {
			m.paramKeys = append(m.paramKeys, k)
			m.initial[k] = v
		}
		sort.Strings(m.paramKeys)
		if m.env != nil {
			for _, k := range envTunables {
				m.paramKeys = append(m.paramKeys, envPrefix+k)
				m.initial[envPrefix+k] = m.env.GetParams()[k]
			}
		}
	}

	r.Reset()
	m.marker = r.Setpoint()
	return m
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd { return m.tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case TickMsg:
		now := time.Time(msg)
		if m.running && !m.done && !m.lastTick.IsZero() {
			m.step(min(now.Sub(m.lastTick), maxFrame))
		}
		m.lastTick = now
		m.marker, m.markerVel = m.spring.Update(m.marker, m.markerVel, m.runner.Setpoint())
		if m.done {
			// the loop halts once the particle leaves the box; reset restarts it
			return m, nil
		}
		return m, m.tick()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ":
		m.running = !m.running
		// the first frame after resuming only resyncs
		m.lastTick = time.Time{}
	case "r":
		wasDone := m.done
		m.reset()
		if wasDone {
			return m, m.tick()
		}
	case "tab":
		if len(m.paramKeys) > 0 {
			m.selected = (m.selected + 1) % len(m.paramKeys)
		}
	case "up", "k":
		m.adjust(1)
	case "down", "j":
		m.adjust(-1)
	case "+", "=":
		m.moveSetpoint(setpointStep)
	case "-", "_":
		m.moveSetpoint(-setpointStep)
	case "s":
		m.snapshot()
	}
	return m, nil
}

func (m *Model) step(frame time.Duration) {
	if frame <= 0 {
		return
	}
	m.clock.Advance(frame)
	s, err := m.runner.Tick()
	if err != nil {
		m.err = err
		m.done = true
		return
	}
	m.last = s
	m.heights = append(m.heights, s.Position.Y())
	if len(m.heights) > heightHistory {
		m.heights = m.heights[1:]
	}
	if s.Done {
		m.done = true
	}
}

// reset restarts both the environment and the controller, which is seeded
// with the fresh observation and the current setpoint.
func (m *Model) reset() {
	m.runner.Reset()
	m.done = false
	m.err = nil
	m.last = dynamo.Sample{}
	m.heights = m.heights[:0]
	m.lastTick = time.Time{}
}

func (m *Model) adjust(dir float64) {
	if m.manual != nil {
		m.manual.Nudge(dir * manualStep)
		return
	}
	if m.tuner == nil || len(m.paramKeys) == 0 {
		return
	}
	key := m.paramKeys[m.selected]
	val := m.param(key)
	switch {
	case dir > 0 && val == 0:
		val = 0.1
	case dir > 0:
		val *= gainStep
	default:
		val /= gainStep
	}
	m.setParam(key, val)
}

func (m Model) param(key string) float64 {
	if name, ok := strings.CutPrefix(key, envPrefix); ok {
		return m.env.GetParams()[name]
	}
	return m.tuner.GetParams()[key]
}

func (m Model) setParam(key string, v float64) {
	if name, ok := strings.CutPrefix(key, envPrefix); ok {
		m.env.SetParam(name, v)
		return
	}
	m.tuner.SetParam(key, v)
}

func (m *Model) moveSetpoint(delta float64) {
	top := 2 * physics.DefaultEdge
	if m.env != nil {
		top = 2 * m.env.Edge
	}
	m.runner.SetSetpoint(max(min(m.runner.Setpoint()+delta, top), 0))
}

// Selected is the gain the up and down keys change.
func (m Model) Selected() string {
	if len(m.paramKeys) == 0 {
		return ""
	}
	return m.paramKeys[m.selected]
}

func (m Model) Done() bool    { return m.done }
func (m Model) Running() bool { return m.running }
func (m Model) Err() error    { return m.err }

// WithSnapshots enables the s key, which writes the current frame as SVG
// into dir.
func (m Model) WithSnapshots(dir string) Model {
	m.snapshotDir = dir
	return m
}

func (m *Model) snapshot() {
	if m.snapshotDir == "" {
		return
	}
	m.draw()
	path := filepath.Join(m.snapshotDir, fmt.Sprintf("frame-%05d.svg", m.last.Step))
	if err := os.WriteFile(path, []byte(m.canvas.SVG(4)), 0644); err != nil {
		m.note = err.Error()
		return
	}
	m.note = "saved " + path
}

func (m Model) View() string {
	m.draw()
	left := canvasStyle.Render(m.canvas.String())
	return lipgloss.JoinHorizontal(lipgloss.Top, left, panelStyle.Render(m.panel()))
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return statusDone.Render("ERROR")
	case m.done:
		return statusDone.Render("OUT OF BOUNDS")
	case !m.running:
		return statusPaused.Render("PAUSED")
	}
	return statusRunning.Render("RUNNING")
}

func (m Model) panel() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("HOVER") + "  " + m.status() + "\n")
	if m.err != nil {
		b.WriteString(statusDone.Render(m.err.Error()) + "\n")
	}

	s := m.last
	b.WriteString(row("time", fmt.Sprintf("%.2fs", s.Time)))
	b.WriteString(row("height", fmt.Sprintf("%.2f m", s.Position.Y())))
	b.WriteString(row("velocity", fmt.Sprintf("%+.2f m/s", s.Velocity.Y())))
	b.WriteString(row("sensor", fmt.Sprintf("%.1f m", s.Observation.Y())))
	b.WriteString(row("setpoint", fmt.Sprintf("%.1f m", m.runner.Setpoint())))
	b.WriteString(row("thrust", fmt.Sprintf("%.2f N", s.Action.Y())))
	b.WriteString(row("net force", fmt.Sprintf("%+.2f N", s.Force.Y())))

	b.WriteString("\n")
	switch {
	case m.manual != nil:
		b.WriteString(row("output", fmt.Sprintf("%.1f", m.manual.Output())))
	case m.tuner != nil:
		for i, k := range m.paramKeys {
			v := m.param(k)
			line := fmt.Sprintf("%-15s %s %7.3f", k, Slider(v, m.initial[k], 10), v)
			if i == m.selected {
				b.WriteString(activeStyle.Render("▸ ") + line + "\n")
			} else {
				b.WriteString("  " + line + "\n")
			}
		}
	}

	if m.env != nil && m.env.History != nil && m.env.History.Len() > 1 {
		chart := asciigraph.Plot(m.env.History.Values(),
			asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("thrust (N)"))
		b.WriteString("\n" + graphStyle.Render(chart) + "\n")
	}
	if len(m.heights) > 1 {
		chart := asciigraph.Plot(m.heights,
			asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("height (m)"))
		b.WriteString("\n" + graphStyle.Render(chart) + "\n")
	}

	if m.note != "" {
		b.WriteString(helpStyle.Render(m.note) + "\n")
	}
	help := "space pause  r reset  q quit\ntab gain  ↑↓ tune  +/- setpoint"
	if m.snapshotDir != "" {
		help += "  s snapshot"
	}
	b.WriteString(helpStyle.Render(help))
	return b.String()
}

// world maps environment coordinates into canvas dots.
func (m Model) world() func(x, y float64) (int, int) {
	edge := physics.DefaultEdge
	if m.env != nil {
		edge = m.env.Edge
	}
	w, h := m.canvas.Dots()
	sx := float64(w-1) / (2 * edge)
	sy := float64(h-1) / (2 * edge)
	return func(x, y float64) (int, int) {
		return int((x + edge) * sx), h - 1 - int(y*sy)
	}
}

func (m Model) draw() {
	c := m.canvas
	c.Clear()
	w, h := c.Dots()
	toDots := m.world()

	c.DrawLine(0, h-1, w-1, h-1)
	c.DrawLine(0, 0, 0, h-1)
	c.DrawLine(w-1, 0, w-1, h-1)

	_, my := toDots(0, m.marker)
	c.DrawDashed(2, w-3, my)

	pos := m.last.Position
	radius := physics.DefaultRadius
	if m.env != nil {
		k := m.env.Kinematics()
		pos = k.Position
		radius = m.env.Radius
	}
	px, py := toDots(pos.X(), pos.Y())
	_, floor := toDots(0, 0)
	_, top := toDots(0, radius)
	c.DrawCircle(px, py, max(floor-top, 1))

	thrust := m.last.Action.Y()
	force := m.last.Force.Y()
	c.DrawArrow(px, py, px, py-int(thrust*arrowDotsPerN))
	c.DrawArrow(px+6, py, px+6, py-int(force*arrowDotsPerN))
}

// Run starts the live view in the alternate screen.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
