package ui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/drgolem/chipplay/internal/app"
	"github.com/drgolem/chipplay/internal/config"
	"github.com/drgolem/chipplay/internal/filesystem"
	"github.com/drgolem/chipplay/internal/soundengine"
	"github.com/drgolem/chipplay/pkg/types"
)

type stubEngine struct {
	state  soundengine.State
	loaded string
}

func (e *stubEngine) Load(name string, data []byte, defaultTrack bool) error {
	e.loaded = filepath.Base(name)
	e.state = soundengine.Finished
	return nil
}

func (e *stubEngine) Play() error {
	e.state = soundengine.Started
	return nil
}

func (e *stubEngine) Pause() error {
	if e.state == soundengine.Started {
		e.state = soundengine.Paused
	}
	return nil
}

func (e *stubEngine) Stop() error {
	e.state = soundengine.Finished
	return nil
}

func (e *stubEngine) NextTrack() bool          { return false }
func (e *stubEngine) PrevTrack() bool          { return false }
func (e *stubEngine) State() soundengine.State { return e.state }
func (e *stubEngine) Err() error               { return nil }
func (e *stubEngine) ClearError()              {}

func (e *stubEngine) MetaData() types.MetaData {
	m := types.NewMetaData()
	m.TrackInformation.Title = e.loaded
	return m
}

func (e *stubEngine) GetPlaybackStatus() types.PlaybackStatus {
	return types.PlaybackStatus{FileName: e.loaded}
}

func newTestModel(t *testing.T) (Model, *stubEngine) {
	t.Helper()
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "songs"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.sid", "b.mod", "songs/c.ym"} {
		if err := os.WriteFile(filepath.Join(root, name), make([]byte, 2048), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	files, err := filesystem.New(root)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { files.Close() })

	e := &stubEngine{}
	return NewModel(app.New(e, files, config.Default()), files, e), e
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "backspace":
			msg = tea.KeyMsg{Type: tea.KeyBackspace}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		case " ":
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestExplorerKeys(t *testing.T) {
	m, e := newTestModel(t)

	// "..", songs, a.sid, b.mod
	m = press(m, "down", "down", "down")
	if m.cursor != 3 {
		t.Fatalf("cursor = %d, want 3", m.cursor)
	}
	m = press(m, "down")
	if m.cursor != 3 {
		t.Errorf("cursor moved past the end: %d", m.cursor)
	}

	m = press(m, "enter")
	if e.loaded != "b.mod" || e.state != soundengine.Started {
		t.Errorf("loaded %q, state %s", e.loaded, e.state)
	}

	m = press(m, " ")
	if e.state != soundengine.Paused {
		t.Errorf("space: state %s", e.state)
	}
	m = press(m, "s")
	if e.state != soundengine.Finished {
		t.Errorf("stop: state %s", e.state)
	}

	m = press(m, "up", "up", "enter")
	if got := m.listing.Path(); filepath.Base(got) != "songs" {
		t.Fatalf("path = %s", got)
	}
	if m.cursor != 0 || len(m.entries) != 2 {
		t.Errorf("entries %v, cursor %d", m.entries, m.cursor)
	}

	m = press(m, "backspace")
	if filepath.Base(m.listing.Path()) == "songs" {
		t.Fatal("backspace did not go up")
	}
	if m.entries[m.cursor].Name != "songs" {
		t.Errorf("cursor on %q, want folder left", m.entries[m.cursor].Name)
	}
}

func TestQuit(t *testing.T) {
	m, _ := newTestModel(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestView(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(m, "down", "down", "enter")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	view := next.(Model).View()
	for _, want := range []string{"chipplay", "songs/", "a.sid", "b.mod", "a.sid", "playing"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestRenderMetaData(t *testing.T) {
	meta := types.NewMetaData()
	meta.HasDiskInformation = true
	meta.DiskInformation = types.DiskInformation{Title: "Disk", Ripper: "someone", TrackCount: 3, Duration: 125}
	meta.TrackInformation.Title = "Song"
	meta.TrackInformation.TrackNumber = 2
	meta.TrackInformation.Position = 61
	meta.TrackInformation.Comment = "notes"

	got := renderMetaData(meta)
	for _, want := range []string{"Disk", "someone", "2:05", "2/3", "1:01", "notes"} {
		if !strings.Contains(got, want) {
			t.Errorf("metadata missing %q:\n%s", want, got)
		}
	}

	empty := renderMetaData(types.NewMetaData())
	if strings.Contains(empty, "Time") || strings.Contains(empty, "Disk") {
		t.Errorf("empty metadata rendered fields:\n%s", empty)
	}
}

func TestFormatting(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{FormatSeconds(0), "0:00"},
		{FormatSeconds(59), "0:59"},
		{FormatSeconds(3600), "60:00"},
		{truncate("abcdef", 4), "abc…"},
		{truncate("abc", 4), "abc"},
		{truncate("abc", 1), "…"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}

	line := formatEntry(filesystem.Entry{Name: "x.sid", Size: 4096}, 30)
	if !strings.HasSuffix(line, "4 Kb") || len(line) != 30 {
		t.Errorf("formatEntry = %q", line)
	}
}
