// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"beats/internal/audio"
	"beats/internal/beat"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// flashChunks is how long an instrument tile stays lit after a hit.
const flashChunks = 4

// steadyMode is the shortest hi-hat gap mode shown as a steady groove.
const steadyMode = 7

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F25D94")).
			Bold(true)

	tileStyle = lipgloss.NewStyle().
			Width(14).
			Padding(1, 2).
			Margin(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#555555"))

	tileColors = [...]lipgloss.Color{
		beat.Bass:  lipgloss.Color("#E84855"),
		beat.Clap:  lipgloss.Color("#F9DC5C"),
		beat.HiHat: lipgloss.Color("#3185FC"),
	}
)

type keyMap struct {
	Quit  key.Binding
	Reset key.Binding
}

var keys = keyMap{
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Reset: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset counters")),
}

// Update is one detection step as the monitor sees it.
type Update struct {
	Index        int
	Priming      bool
	HistoryLen   int
	HistoryCap   int
	Events       []beat.BeatEvent
	ExcitedBands int
	HiHatGaps    beat.GapSnapshot
	Stats        audio.Stats
}

// Feed carries updates from the detection goroutine to the monitor. Updates
// are dropped when the monitor falls behind.
type Feed struct {
	ch chan Update
}

// NewFeed returns a feed buffering up to size updates.
func NewFeed(size int) *Feed {
	return &Feed{ch: make(chan Update, max(size, 1))}
}

// Observer returns an audio.Observer that forwards results to the feed.
func (f *Feed) Observer(session *beat.Session) audio.Observer {
	return func(res beat.Result, stats audio.Stats) {
		u := Update{
			Index:      res.Index,
			Priming:    res.Priming,
			HistoryLen: session.History().Len(),
			HistoryCap: session.History().Capacity(),
			HiHatGaps:  res.HiHatGaps,
			Stats:      stats,
		}
		if len(res.Events) > 0 {
			u.Events = append([]beat.BeatEvent(nil), res.Events...)
		}
		for _, e := range res.Excited {
			if e {
				u.ExcitedBands++
			}
		}
		f.Send(u)
	}
}

// Send queues u without blocking.
func (f *Feed) Send(u Update) {
	select {
	case f.ch <- u:
	default:
	}
}

type updateMsg Update

func waitForUpdate(f *Feed) tea.Cmd {
	return func() tea.Msg {
		return updateMsg(<-f.ch)
	}
}

// MonitorModel is the live beat display.
type MonitorModel struct {
	feed   *Feed
	source string

	current   Update
	counts    [3]int
	lastHit   [3]int
	recent    []beat.BeatEvent
	width     int
	quitting  bool
	hasUpdate bool
}

// NewMonitorModel creates a monitor reading from feed. source names the
// input in the title bar.
func NewMonitorModel(feed *Feed, source string) MonitorModel {
	return MonitorModel{
		feed:    feed,
		source:  source,
		lastHit: [3]int{-flashChunks - 1, -flashChunks - 1, -flashChunks - 1},
	}
}

// Init starts listening to the feed.
func (m MonitorModel) Init() tea.Cmd {
	return waitForUpdate(m.feed)
}

func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case updateMsg:
		m.current = Update(msg)
		m.hasUpdate = true
		for _, e := range msg.Events {
			m.counts[e.Instrument]++
			m.lastHit[e.Instrument] = e.ChunkIndex
			m.recent = append(m.recent, e)
		}
		if n := len(m.recent); n > 8 {
			m.recent = append(m.recent[:0], m.recent[n-8:]...)
		}
		return m, waitForUpdate(m.feed)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Reset):
			m.counts = [3]int{}
			m.recent = m.recent[:0]
		}
	}
	return m, nil
}

// Counts returns the beats seen per instrument since the last reset.
func (m MonitorModel) Counts() [3]int { return m.counts }

// View renders the UI
func (m MonitorModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Beat Monitor · " + m.source))
	sb.WriteString("\n\n")

	if !m.hasUpdate {
		sb.WriteString(infoStyle.Render("Waiting for audio..."))
		sb.WriteString("\n\n")
		sb.WriteString(infoStyle.Render("q: Quit"))
		return sb.String()
	}

	if m.current.Priming {
		sb.WriteString(infoStyle.Render(fmt.Sprintf("Priming energy history %d/%d", m.current.HistoryLen, m.current.HistoryCap)))
		sb.WriteString("\n\n")
	}

	tiles := make([]string, 0, len(beat.Instruments))
	for _, inst := range beat.Instruments {
		tiles = append(tiles, m.renderTile(inst))
	}
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tiles...))
	sb.WriteString("\n\n")

	gaps := m.current.HiHatGaps
	groove := "-"
	if gaps.Batches > 0 {
		groove = fmt.Sprintf("avg %.1f, mode %d", gaps.Average, gaps.Mode)
		if gaps.Steady(steadyMode) {
			groove += " " + warnStyle.Render("steady")
		}
	}
	sb.WriteString(infoStyle.Render(fmt.Sprintf("Hi-hat gaps: %s (%d pending)", groove, gaps.Pending)))
	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render(fmt.Sprintf("Chunk %d · %d sub-bands excited", m.current.Index, m.current.ExcitedBands)))
	sb.WriteString("\n")
	sb.WriteString(m.renderStats())
	sb.WriteString("\n\n")

	for i := len(m.recent) - 1; i >= 0; i-- {
		e := m.recent[i]
		sb.WriteString(fmt.Sprintf("  %-5s chunk %6d  energy %.4g\n", e.Instrument, e.ChunkIndex, e.Energy))
	}
	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render("r: Reset counters • q: Quit"))
	return sb.String()
}

func (m MonitorModel) renderTile(inst beat.Instrument) string {
	style := tileStyle
	if m.current.Index-m.lastHit[inst] <= flashChunks {
		style = style.
			Background(tileColors[inst]).
			Foreground(lipgloss.Color("#000000")).
			BorderForeground(tileColors[inst])
	}
	return style.Render(fmt.Sprintf("%s\n%d", strings.ToUpper(inst.String()), m.counts[inst]))
}

func (m MonitorModel) renderStats() string {
	s := m.current.Stats
	line := fmt.Sprintf("Processed %d · last %v / budget %v", s.Processed, s.Last.Round(10_000), s.Budget.Round(10_000))
	if s.Dropped > 0 || s.Overruns > 0 || s.Skipped > 0 {
		return infoStyle.Render(line) + "  " +
			warnStyle.Render(fmt.Sprintf("dropped %d · overruns %d · skipped %d", s.Dropped, s.Overruns, s.Skipped))
	}
	return infoStyle.Render(line)
}

// RunMonitor shows the monitor until the user quits or ctx is cancelled.
func RunMonitor(ctx context.Context, feed *Feed, source string) error {
	p := tea.NewProgram(
		NewMonitorModel(feed, source),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
