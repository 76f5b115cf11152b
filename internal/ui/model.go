// Package ui is the terminal front end: a file explorer, the player
// controls and the metadata panel.
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/drgolem/chipplay/internal/app"
	"github.com/drgolem/chipplay/internal/filesystem"
	"github.com/drgolem/chipplay/internal/soundengine"
	"github.com/drgolem/chipplay/pkg/types"
)

const frameInterval = 100 * time.Millisecond

// Listing is the explorer's view of the file manager.
type Listing interface {
	Path() string
	Entries() []filesystem.Entry
}

// Player is the engine state shown in the player panel.
type Player interface {
	State() soundengine.State
	MetaData() types.MetaData
	GetPlaybackStatus() types.PlaybackStatus
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Model is the bubbletea model.
type Model struct {
	app     *app.App
	listing Listing
	player  Player

	entries []filesystem.Entry
	cursor  int
	offset  int

	width  int
	height int
}

func NewModel(a *app.App, listing Listing, player Player) Model {
	m := Model{app: a, listing: listing, player: player}
	m.entries = listing.Entries()
	m.cursor = m.indexOf(a.Selected())
	return m
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.scroll()
	case tickMsg:
		m.app.Tick()
		m.refresh()
		return m, tickCmd()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		m.cursor = max(m.cursor-1, 0)
	case "down", "j":
		m.cursor = min(m.cursor+1, len(m.entries)-1)
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = len(m.entries) - 1
	case "pgup":
		m.cursor = max(m.cursor-m.listHeight(), 0)
	case "pgdown":
		m.cursor = min(m.cursor+m.listHeight(), len(m.entries)-1)
	case "enter":
		if m.cursor >= 0 && m.cursor < len(m.entries) {
			entry := m.entries[m.cursor]
			m.app.Open(entry)
			if entry.Folder {
				m.entries = m.listing.Entries()
				m.cursor = max(m.indexOf(m.app.Selected()), 0)
				m.offset = 0
			}
		}
	case "backspace", "h":
		m.app.Open(filesystem.Entry{Name: filesystem.ParentName, Folder: true})
		m.entries = m.listing.Entries()
		m.cursor = max(m.indexOf(m.app.Selected()), 0)
		m.offset = 0
	case " ":
		m.app.Press(app.ButtonPlay)
	case "s":
		m.app.Press(app.ButtonStop)
	case "n", "right":
		m.app.Press(app.ButtonNext)
	case "p", "left":
		m.app.Press(app.ButtonPrev)
	}
	m.cursor = max(m.cursor, 0)
	m.scroll()
	return m, nil
}

// refresh picks up listing changes from the watcher.
func (m *Model) refresh() {
	m.entries = m.listing.Entries()
	m.cursor = max(min(m.cursor, len(m.entries)-1), 0)
	m.scroll()
}

// scroll keeps the cursor inside the visible window.
func (m *Model) scroll() {
	height := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+height {
		m.offset = m.cursor - height + 1
	}
}

func (m Model) indexOf(name string) int {
	for i, e := range m.entries {
		if e.Name == name {
			return i
		}
	}
	return 0
}

func (m Model) listHeight() int {
	if m.height <= 0 {
		return 20
	}
	return max(m.height-6, 3)
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("chipplay"))
	b.WriteString("  ")
	b.WriteString(pathStyle.Render(m.listing.Path()))
	b.WriteString("\n\n")

	explorerWidth := 40
	if m.width > 0 {
		explorerWidth = max(m.width/2-2, 20)
	}
	left := m.renderExplorer(explorerWidth)
	right := renderPlayer(m.player.State(), m.player.MetaData(), m.player.GetPlaybackStatus())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle.Width(explorerWidth).Render(left),
		panelStyle.Render(right)))
	b.WriteString("\n")

	b.WriteString(statusStyle.Render(m.app.Status()))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter open • backspace up • space play/pause • s stop • n/p next/prev • q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderExplorer(width int) string {
	height := m.listHeight()
	if len(m.entries) == 0 {
		return helpStyle.Render("(empty)")
	}

	selected := m.app.Selected()
	lines := make([]string, 0, height)
	for i := m.offset; i < len(m.entries) && i < m.offset+height; i++ {
		e := m.entries[i]
		line := formatEntry(e, width-2)
		switch {
		case i == m.cursor:
			line = cursorStyle.Render(line)
		case e.Name == selected:
			line = selectedStyle.Render(line)
		case e.Folder:
			line = folderStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatEntry(e filesystem.Entry, width int) string {
	if e.Folder {
		return truncate("▸ "+e.Name+"/", width)
	}
	size := fmt.Sprintf("%6d Kb", e.Size/1024)
	name := truncate("  "+e.Name, max(width-len(size)-1, 1))
	return fmt.Sprintf("%-*s %s", max(width-len(size)-1, 1), name, size)
}

func renderPlayer(state soundengine.State, meta types.MetaData, status types.PlaybackStatus) string {
	var b strings.Builder

	b.WriteString(stateStyle(state).Render(stateLabel(state)))
	if status.Decoder != "" {
		fmt.Fprintf(&b, "  %s %d Hz %d ch", status.Decoder, status.SampleRate, status.Channels)
	}
	b.WriteString("\n")
	if title := meta.DisplayTitle(); title != "" {
		b.WriteString(headerStyle.Render(title))
		b.WriteString("\n")
	}

	b.WriteString(renderMetaData(meta))
	return b.String()
}

func stateLabel(s soundengine.State) string {
	switch s {
	case soundengine.Started:
		return "▶ playing"
	case soundengine.Paused:
		return "❚❚ paused"
	case soundengine.Error:
		return "✗ error"
	}
	return "■ stopped"
}

// renderMetaData lists the known disk and track fields.
func renderMetaData(meta types.MetaData) string {
	var b strings.Builder
	row := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-10s", label)), value)
		}
	}

	disk := meta.DiskInformation
	if meta.HasDiskInformation {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("Disk"))
		b.WriteString("\n")
		row("Title", disk.Title)
		row("Ripper", disk.Ripper)
		row("Converter", disk.Converter)
		row("Copyright", disk.Copyright)
		if disk.TrackCount > 0 {
			row("Tracks", fmt.Sprint(disk.TrackCount))
		}
		if disk.Duration > 0 {
			row("Duration", FormatSeconds(disk.Duration))
		}
	}

	track := meta.TrackInformation
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Track"))
	b.WriteString("\n")
	row("Title", track.Title)
	row("Author", track.Author)
	row("Copyright", track.Copyright)
	if disk.TrackCount > 1 {
		row("Track", fmt.Sprintf("%d/%d", track.TrackNumber, disk.TrackCount))
	}
	if track.Position > -1 {
		row("Time", FormatSeconds(track.Position))
	}
	if track.Duration > 0 {
		row("Duration", FormatSeconds(track.Duration))
	}
	if track.Comment != "" {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("Comments"))
		b.WriteString("\n")
		b.WriteString(track.Comment)
		b.WriteString("\n")
	}
	return b.String()
}

// FormatSeconds renders m:ss.
func FormatSeconds(s int) string {
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
