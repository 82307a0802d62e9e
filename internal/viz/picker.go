package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	pickTitle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00cccc")).Bold(true)
	pickSub    = lipgloss.NewStyle().Foreground(lipgloss.Color("#666688"))
	pickCursor = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ffff")).Bold(true)
	pickActive = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Bold(true)
	pickDesc   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff88ff"))
	pickIdle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#555566"))
	pickKey    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00aaaa")).Bold(true)
)

// Starter builds the live view for a preset.
type Starter func(preset string) (Model, error)

type pickerState int

const (
	stateMenu pickerState = iota
	stateLive
)

// Picker lists presets and hands over to the live view once one is chosen.
type Picker struct {
	state   pickerState
	cursor  int
	presets []string
	info    map[string]string
	start   Starter
	err     error
	live    Model
}

func NewPicker(presets []string, info map[string]string, start Starter) Picker {
	return Picker{presets: presets, info: info, start: start}
}

func (p Picker) Init() tea.Cmd { return nil }

func (p Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if p.state == stateLive {
		next, cmd := p.live.Update(msg)
		p.live = next.(Model)
		return p, cmd
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return p, nil
	}
	switch key.String() {
	case "q", "ctrl+c":
		return p, tea.Quit
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(p.presets)-1 {
			p.cursor++
		}
	case "enter", " ":
		if len(p.presets) == 0 {
			return p, nil
		}
		live, err := p.start(p.presets[p.cursor])
		if err != nil {
			p.err = err
			return p, nil
		}
		p.live, p.state, p.err = live, stateLive, nil
		return p, p.live.Init()
	}
	return p, nil
}

func (p Picker) View() string {
	if p.state == stateLive {
		return p.live.View()
	}

	var b strings.Builder
	b.WriteString("\n\n    " + pickTitle.Render("HOVERSIM") + "\n    " + pickSub.Render("particle hover under PID control") + "\n    " + pickSub.Render(strings.Repeat("─", 32)) + "\n\n")
	for i, name := range p.presets {
		if i == p.cursor {
			b.WriteString(fmt.Sprintf("    %s %s  %s\n", pickCursor.Render("▸"), pickActive.Render(fmt.Sprintf("%-12s", name)), pickDesc.Render(p.info[name])))
		} else {
			b.WriteString(fmt.Sprintf("      %s  %s\n", pickIdle.Render(fmt.Sprintf("%-12s", name)), pickIdle.Render(p.info[name])))
		}
	}
	if p.err != nil {
		b.WriteString("\n    " + statusDone.Render(p.err.Error()) + "\n")
	}
	b.WriteString("\n    " + pickKey.Render("j/k") + pickIdle.Render(" navigate  ") + pickKey.Render("enter") + pickIdle.Render(" start  ") + pickKey.Render("q") + pickIdle.Render(" quit") + "\n")
	return b.String()
}

// RunPicker opens the preset menu in the alternate screen.
func RunPicker(presets []string, info map[string]string, start Starter) error {
	_, err := tea.NewProgram(NewPicker(presets, info, start), tea.WithAltScreen()).Run()
	return err
}
