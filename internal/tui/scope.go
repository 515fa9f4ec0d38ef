// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"olafx/internal/scheduler"
	"olafx/internal/snapshot"
	"olafx/internal/window"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
)

var (
	inputStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D8CA3"))
	outputStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
	landmarkStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F25D94")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

const (
	scopeFPS     = 60
	minColumns   = 16
	scopeRows    = 4
	levelGlyphs  = " ▁▂▃▄▅▆▇█"
	landmarkMark = "▲"
)

// Controller receives configuration requests from the scope. It must be
// safe to call from the UI goroutine while audio is running.
type Controller interface {
	Request(cfg window.Config) error
}

type scopeKeys struct {
	Bigger  key.Binding
	Smaller key.Binding
	Shape   key.Binding
	Freeze  key.Binding
	Quit    key.Binding
}

func defaultScopeKeys() scopeKeys {
	return scopeKeys{
		Bigger:  key.NewBinding(key.WithKeys("+", "=", "]"), key.WithHelp("+", "larger frame")),
		Smaller: key.NewBinding(key.WithKeys("-", "_", "["), key.WithHelp("-", "smaller frame")),
		Shape:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "shape")),
		Freeze:  key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "freeze")),
		Quit:    key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k scopeKeys) help() string {
	var parts []string
	for _, b := range []key.Binding{k.Bigger, k.Smaller, k.Shape, k.Freeze, k.Quit} {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, "  ")
}

// springs smooths per-column levels so the display eases between frames.
type springs struct {
	spring harmonica.Spring
	pos    []float64
	vel    []float64
}

func newSprings(fps int, frequency, damping float64) springs {
	return springs{spring: harmonica.NewSpring(harmonica.FPS(fps), frequency, damping)}
}

func (s *springs) resize(n int) {
	if len(s.pos) == n {
		return
	}
	s.pos = make([]float64, n)
	s.vel = make([]float64, n)
}

func (s *springs) step(i int, target float64) float64 {
	p, v := s.spring.Update(s.pos[i], s.vel[i], target)
	s.pos[i] = p
	s.vel[i] = v
	return p
}

// ScopeOptions configures a ScopeModel.
type ScopeOptions struct {
	Controller   Controller
	Config       window.Config // Configuration the engine starts with.
	MaxFrameSize int
	SampleRate   float64
	Title        string
}

// ScopeModel draws the input and output of the most recent frame, with
// landmarks marked under the output, and lets the user change the frame
// size and envelope shape while audio runs.
type ScopeModel struct {
	opts   ScopeOptions
	keys   scopeKeys
	cfg    window.Config // Last requested configuration.
	sizes  []int
	snap   *snapshot.Snapshot
	frozen bool
	err    error

	width     int
	in, out   springs
	inLevels  []float64 // Smoothed column levels.
	outLevels []float64
	received  uint64
}

// NewScopeModel returns a scope for opts.
func NewScopeModel(opts ScopeOptions) ScopeModel {
	var sizes []int
	for _, n := range window.SupportedFrameSizes {
		if n <= opts.MaxFrameSize {
			sizes = append(sizes, n)
		}
	}
	if opts.Title == "" {
		opts.Title = "olafx"
	}
	return ScopeModel{
		opts:  opts,
		keys:  defaultScopeKeys(),
		cfg:   opts.Config,
		sizes: sizes,
		width: 80,
		in:    newSprings(scopeFPS, 8, 0.9),
		out:   newSprings(scopeFPS, 8, 0.9),
	}
}

func (m ScopeModel) Init() tea.Cmd {
	return nil
}

func (m ScopeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case snapshotMsg:
		m.received++
		if !m.frozen {
			m.snap = msg.snap
			m.smooth()
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Freeze):
			m.frozen = !m.frozen
		case key.Matches(msg, m.keys.Bigger):
			m.request(m.stepSize(1), m.cfg.Shape)
		case key.Matches(msg, m.keys.Smaller):
			m.request(m.stepSize(-1), m.cfg.Shape)
		case key.Matches(msg, m.keys.Shape):
			m.request(m.cfg.FrameSize, (m.cfg.Shape+1)%(window.Cosine2+1))
		}
	}
	return m, nil
}

// smooth moves every column level one spring step towards the current
// snapshot.
func (m *ScopeModel) smooth() {
	cols := m.columns()
	in := columnLevels(m.snap.InputSlice(), cols)
	out := columnLevels(m.snap.OutputSlice(), cols)
	m.in.resize(cols)
	m.out.resize(cols)
	for i := range cols {
		in[i] = m.in.step(i, in[i])
		out[i] = m.out.step(i, out[i])
	}
	m.inLevels, m.outLevels = in, out
}

func (m ScopeModel) columns() int {
	return max(minColumns, m.width-6)
}

// stepSize returns the supported frame size dir steps from the current one.
func (m ScopeModel) stepSize(dir int) int {
	i := slices.Index(m.sizes, m.cfg.FrameSize)
	if i < 0 {
		return m.cfg.FrameSize
	}
	i = max(0, min(len(m.sizes)-1, i+dir))
	return m.sizes[i]
}

func (m *ScopeModel) request(frameSize int, shape window.Shape) {
	next := window.Config{FrameSize: frameSize, Shape: shape}
	if next == m.cfg || m.opts.Controller == nil {
		return
	}
	if err := m.opts.Controller.Request(next); err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.cfg = next
}

// Requested returns the last configuration the scope asked for.
func (m ScopeModel) Requested() window.Config { return m.cfg }

func (m ScopeModel) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(m.opts.Title))
	sb.WriteString("  ")
	sb.WriteString(m.status())
	sb.WriteString("\n\n")

	if m.snap == nil {
		sb.WriteString(dimStyle.Render("waiting for audio..."))
		sb.WriteString("\n")
	} else {
		sb.WriteString(renderBars("in ", m.inLevels, inputStyle))
		sb.WriteString(renderBars("out", m.outLevels, outputStyle))
		sb.WriteString("    ")
		sb.WriteString(landmarkStyle.Render(landmarkRow(m.snap, len(m.outLevels))))
		sb.WriteString("\n")
	}

	if m.err != nil {
		sb.WriteString("\n")
		sb.WriteString(highlightStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render(m.keys.help()))
	return sb.String()
}

func (m ScopeModel) status() string {
	latency := ""
	if m.opts.SampleRate > 0 {
		latency = fmt.Sprintf(" (%.1f ms)", 1000*float64(m.cfg.FrameSize)/m.opts.SampleRate)
	}
	s := fmt.Sprintf("frame %d%s  shape %s", m.cfg.FrameSize, latency, m.cfg.Shape)
	if m.snap != nil {
		s += fmt.Sprintf("  rev %d  landmarks %d", m.snap.Revision, m.snap.LandmarkCount)
	}
	if m.frozen {
		s += "  [frozen]"
	}
	return dimStyle.Render(s)
}

// columnLevels reduces samples to cols peak magnitudes in [0, 1].
func columnLevels(samples []float32, cols int) []float64 {
	levels := make([]float64, cols)
	n := len(samples)
	if n == 0 {
		return levels
	}
	for c := range cols {
		lo := c * n / cols
		hi := max(lo+1, (c+1)*n/cols)
		var peak float32
		for _, v := range samples[lo:min(hi, n)] {
			if v < 0 {
				v = -v
			}
			peak = max(peak, v)
		}
		levels[c] = min(float64(peak), 1)
	}
	return levels
}

// renderBars draws levels as a scopeRows-high bar graph.
func renderBars(label string, levels []float64, style lipgloss.Style) string {
	glyphs := []rune(levelGlyphs)
	steps := len(glyphs) - 1
	var sb strings.Builder
	for row := scopeRows - 1; row >= 0; row-- {
		if row == scopeRows/2 {
			sb.WriteString(dimStyle.Render(label))
		} else {
			sb.WriteString("   ")
		}
		sb.WriteString(" ")
		line := make([]rune, len(levels))
		for i, l := range levels {
			// Height of this column inside the current row, in glyph steps.
			h := int(max(0, min(1, l))*float64(scopeRows*steps)+0.5) - row*steps
			line[i] = glyphs[max(0, min(steps, h))]
		}
		sb.WriteString(style.Render(string(line)))
		sb.WriteString("\n")
	}
	return sb.String()
}

// landmarkRow marks the columns holding landmarks.
func landmarkRow(s *snapshot.Snapshot, cols int) string {
	row := []rune(strings.Repeat(" ", cols))
	if s.FrameSize <= 0 {
		return string(row)
	}
	mark := []rune(landmarkMark)[0]
	for _, pos := range s.LandmarkPos[:s.LandmarkCount] {
		c := int(pos) * cols / int(s.FrameSize)
		if c >= 0 && c < cols {
			row[c] = mark
		}
	}
	return string(row)
}

// RunScope runs the scope until the user quits or ctx is done. The feed is
// registered with sched for the lifetime of the program.
func RunScope(ctx context.Context, sched *scheduler.Scheduler, cache *snapshot.Cache, opts ScopeOptions) error {
	p := tea.NewProgram(NewScopeModel(opts), tea.WithAltScreen(), tea.WithContext(ctx))

	feed := NewScopeFeed(cache, p.Send)
	sched.Register(feed)
	defer sched.Unregister(feed)

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
