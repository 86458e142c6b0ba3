// Command acidbox-tui is a terminal front end for the engine: a
// 16-step grid with live playhead, step editing and knob keys. It is
// strictly an external collaborator of the core: it only writes
// pattern/parameter data and reads the step-index notification.
package main

import (
	"fmt"
	"log"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/acidgo/acidbox"
)

const defaultPattern = "c . c ~d# . c' g! . c . c ~a# . g! d# ."

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	cellStyle   = lipgloss.NewStyle().Width(5).Align(lipgloss.Center).Foreground(lipgloss.Color("245"))
	activeStyle = cellStyle.Foreground(lipgloss.Color("84"))
	accentStyle = cellStyle.Foreground(lipgloss.Color("213")).Bold(true)
	playStyle   = lipgloss.NewStyle().Background(lipgloss.Color("57")).Foreground(lipgloss.Color("231"))
	cursorStyle = lipgloss.NewStyle().Underline(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// stepMsg carries the scheduler's step-index notification (-1 = none).
type stepMsg int

type model struct {
	engine  *acidbox.Engine
	cursor  int
	playing int // highlighted step, -1 when stopped
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stepMsg:
		m.playing = int(msg)
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	pat := m.engine.Pattern()
	params := m.engine.Params()
	step := pat[m.cursor]

	switch msg.String() {
	case "q", "ctrl+c":
		m.engine.Stop()
		return m, tea.Quit
	case " ":
		if m.engine.State() == acidbox.Playing {
			m.engine.Stop()
			m.playing = -1
		} else if err := m.engine.Start(); err != nil {
			return m, tea.Quit
		}
		return m, nil
	case "left", "h":
		m.cursor = (m.cursor + acidbox.PatternLength - 1) % acidbox.PatternLength
		return m, nil
	case "right", "l":
		m.cursor = (m.cursor + 1) % acidbox.PatternLength
		return m, nil
	case "enter", "x":
		step.Active = !step.Active
	case "up", "k":
		step.Note = (step.Note + 1) % 12
	case "down", "j":
		step.Note = (step.Note + 11) % 12
	case "o":
		if step.Octave > -1 {
			step.Octave--
		}
	case "O":
		if step.Octave < 1 {
			step.Octave++
		}
	case "s":
		step.Slide = !step.Slide
	case "a":
		step.Accent = !step.Accent
	case "[":
		params.Tempo -= 5
	case "]":
		params.Tempo += 5
	case "w":
		if params.Waveform == acidbox.WaveSawtooth {
			params.Waveform = acidbox.WaveSquare
		} else {
			params.Waveform = acidbox.WaveSawtooth
		}
	case "c":
		params.Cutoff -= 5
	case "C":
		params.Cutoff += 5
	case "r":
		params.Resonance -= 5
	case "R":
		params.Resonance += 5
	case "e":
		params.EnvMod -= 5
	case "E":
		params.EnvMod += 5
	case "d":
		params.Decay -= 5
	case "D":
		params.Decay += 5
	default:
		return m, nil
	}

	m.engine.SetStep(m.cursor, step)
	m.engine.SetParams(params)
	return m, nil
}

func (m model) View() string {
	pat := m.engine.Pattern()
	params := m.engine.Params()

	var cells []string
	for i, s := range pat {
		label := "."
		style := cellStyle
		if s.Active {
			label = noteNames[s.Note]
			switch {
			case s.Octave > 0:
				label += "'"
			case s.Octave < 0:
				label += ","
			}
			if s.Slide {
				label = "~" + label
			}
			style = activeStyle
			if s.Accent {
				style = accentStyle
			}
		}
		cell := style.Render(label)
		if i == m.playing {
			cell = playStyle.Render(cell)
		}
		if i == m.cursor {
			cell = cursorStyle.Render(cell)
		}
		cells = append(cells, cell)
	}

	state := "stopped"
	if m.engine.State() == acidbox.Playing {
		state = "playing"
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("acidbox") + "  " + state + "\n\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...) + "\n\n")
	b.WriteString(fmt.Sprintf("tempo %3.0f  wave %-8s  cutoff %3d  res %3d  env %3d  decay %3d\n",
		params.Tempo, params.Waveform, params.Cutoff, params.Resonance, params.EnvMod, params.Decay))
	b.WriteString(helpStyle.Render("space play/stop · ←→ step · ↑↓ note · o/O octave · s slide · a accent\n[/] tempo · w wave · c/C r/R e/E d/D knobs · q quit"))
	return b.String()
}

func main() {
	steps := make(chan int, acidbox.PatternLength)
	engine, err := acidbox.New(acidbox.WithOnStep(func(i int) {
		select {
		case steps <- i:
		default: // never block the scheduling goroutine
		}
	}))
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Close()

	pat, err := acidbox.ParsePattern(defaultPattern)
	if err != nil {
		log.Fatal(err)
	}
	engine.SetPattern(pat)

	p := tea.NewProgram(model{engine: engine, playing: -1})
	go func() {
		for i := range steps {
			p.Send(stepMsg(i))
		}
	}()
	if _, err := p.Run(); err != nil {
		log.Fatal(err)
	}
}
