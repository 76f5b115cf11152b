package app

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/drgolem/chipplay/internal/config"
	"github.com/drgolem/chipplay/internal/filesystem"
	"github.com/drgolem/chipplay/internal/soundengine"
	"github.com/drgolem/chipplay/pkg/types"
)

// fakeEngine follows the engine's transitions. Files named bad.* fail to
// load, subtunes maps file names to their track count.
type fakeEngine struct {
	state    soundengine.State
	err      error
	subtunes map[string]int

	loaded       string
	track        int
	defaultTrack bool
	loads        []string
	plays        int
}

func (e *fakeEngine) Load(name string, data []byte, defaultTrack bool) error {
	base := filepath.Base(name)
	e.loads = append(e.loads, base)
	if strings.HasPrefix(base, "bad.") {
		e.state = soundengine.Error
		e.err = errors.New("malformed container")
		return e.err
	}
	e.loaded, e.track, e.defaultTrack = base, 1, defaultTrack
	if e.state != soundengine.Error {
		e.state = soundengine.Finished
	}
	return nil
}

func (e *fakeEngine) Play() error {
	if e.state == soundengine.Finished || e.state == soundengine.Paused {
		e.state = soundengine.Started
		e.plays++
	}
	return nil
}

func (e *fakeEngine) Pause() error {
	if e.state == soundengine.Started {
		e.state = soundengine.Paused
	}
	return nil
}

func (e *fakeEngine) Stop() error {
	if e.state != soundengine.Error {
		e.state = soundengine.Finished
	}
	return nil
}

func (e *fakeEngine) move(delta int) bool {
	next := e.track + delta
	if e.state == soundengine.Error || e.loaded == "" || next < 1 || next > e.subtunes[e.loaded] {
		return false
	}
	e.track = next
	if e.state == soundengine.FinishedNatural {
		e.state = soundengine.Started
	}
	return true
}

func (e *fakeEngine) NextTrack() bool          { return e.move(1) }
func (e *fakeEngine) PrevTrack() bool          { return e.move(-1) }
func (e *fakeEngine) State() soundengine.State { return e.state }
func (e *fakeEngine) MetaData() types.MetaData { return types.NewMetaData() }
func (e *fakeEngine) Err() error               { return e.err }

func (e *fakeEngine) ClearError() {
	e.err = nil
	if e.state == soundengine.Error {
		e.state = soundengine.Finished
	}
}

func newTestApp(t *testing.T, names []string, settings config.Settings) (*App, *fakeEngine) {
	t.Helper()
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "inner.sid"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(root, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	files, err := filesystem.New(root)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { files.Close() })

	e := &fakeEngine{subtunes: map[string]int{}}
	return New(e, files, settings), e
}

func TestNeighbourFiles(t *testing.T) {
	files := []string{"a", "b", "c"}
	tests := []struct {
		current    string
		next, prev string
	}{
		{"", "a", "c"},
		{"a", "b", ""},
		{"b", "c", "a"},
		{"c", "", "b"},
		{"gone", "", ""},
	}
	for _, tt := range tests {
		if got := nextFile(files, tt.current); got != tt.next {
			t.Errorf("nextFile(%q) = %q, want %q", tt.current, got, tt.next)
		}
		if got := prevFile(files, tt.current); got != tt.prev {
			t.Errorf("prevFile(%q) = %q, want %q", tt.current, got, tt.prev)
		}
	}
	if nextFile(nil, "") != "" || prevFile(nil, "") != "" {
		t.Error("empty listing returned a file")
	}
}

func TestOpenFile(t *testing.T) {
	a, e := newTestApp(t, []string{"one.sid", "two.sid"}, config.Default())

	a.Open(filesystem.Entry{Name: "one.sid"})
	if e.loaded != "one.sid" || e.state != soundengine.Started {
		t.Fatalf("loaded %q, state %s", e.loaded, e.state)
	}
	if !e.defaultTrack {
		t.Error("default track not requested")
	}
	a.Tick()
	if a.Status() != StatusPlaying || a.Selected() != "one.sid" {
		t.Errorf("status %q, selected %q", a.Status(), a.Selected())
	}

	// reopening the playing file does nothing
	a.Open(filesystem.Entry{Name: "one.sid"})
	if len(e.loads) != 1 {
		t.Errorf("loads = %v", e.loads)
	}

	// after Stop it reloads
	a.Press(ButtonStop)
	a.Open(filesystem.Entry{Name: "one.sid"})
	if len(e.loads) != 2 || e.state != soundengine.Started {
		t.Errorf("loads = %v, state %s", e.loads, e.state)
	}
}

func TestAlwaysStartFirstTrack(t *testing.T) {
	s := config.Default()
	s.AlwaysStartFirstTrack = true
	a, e := newTestApp(t, []string{"one.sid"}, s)
	a.Open(filesystem.Entry{Name: "one.sid"})
	if e.defaultTrack {
		t.Error("default track requested")
	}
}

func TestOpenFolder(t *testing.T) {
	a, e := newTestApp(t, []string{"one.sid"}, config.Default())
	e.state, e.err = soundengine.Error, errors.New("boom")

	a.Open(filesystem.Entry{Name: "sub", Folder: true})
	if e.state != soundengine.Finished {
		t.Errorf("engine error not acknowledged: %s", e.state)
	}
	if got := a.files.Files(); !slices.Equal(got, []string{"inner.sid"}) {
		t.Errorf("files = %v", got)
	}

	a.Open(filesystem.Entry{Name: filesystem.ParentName, Folder: true})
	if a.Selected() != "sub" {
		t.Errorf("selected %q, want folder left", a.Selected())
	}

	a.Open(filesystem.Entry{Name: "missing", Folder: true})
	a.Tick()
	if a.Status() == StatusReady {
		t.Error("navigation error not shown")
	}
}

func TestPlayButton(t *testing.T) {
	a, e := newTestApp(t, []string{"one.sid"}, config.Default())

	a.Press(ButtonPlay)
	if len(e.loads) != 0 {
		t.Fatal("loaded without selection")
	}

	a.Open(filesystem.Entry{Name: "one.sid"})
	a.Press(ButtonPlay)
	if e.state != soundengine.Paused {
		t.Errorf("state %s, want paused", e.state)
	}
	a.Press(ButtonPlay)
	if e.state != soundengine.Started || len(e.loads) != 1 {
		t.Errorf("resume: state %s, loads %v", e.state, e.loads)
	}

	a.Press(ButtonStop)
	a.Press(ButtonPlay)
	if e.state != soundengine.Started || len(e.loads) != 2 {
		t.Errorf("replay: state %s, loads %v", e.state, e.loads)
	}
}

func TestAutoAdvance(t *testing.T) {
	a, e := newTestApp(t, []string{"a.sid", "b.sid", "c.sid"}, config.Default())
	e.subtunes["a.sid"] = 2

	a.Open(filesystem.Entry{Name: "a.sid"})

	// subtune first
	e.state = soundengine.FinishedNatural
	a.Tick()
	if e.loaded != "a.sid" || e.track != 2 || e.state != soundengine.Started {
		t.Fatalf("loaded %q track %d state %s", e.loaded, e.track, e.state)
	}

	// then the next file
	e.state = soundengine.FinishedNatural
	a.Tick()
	if e.loaded != "b.sid" || e.state != soundengine.Started {
		t.Fatalf("loaded %q state %s", e.loaded, e.state)
	}

	a.Open(filesystem.Entry{Name: "c.sid"})
	e.state = soundengine.FinishedNatural
	a.Tick()
	if e.state != soundengine.Finished {
		t.Errorf("end of listing: state %s, want finished", e.state)
	}
}

func TestSkipSubtunes(t *testing.T) {
	s := config.Default()
	s.SkipSubtunes = true
	a, e := newTestApp(t, []string{"a.sid", "b.sid"}, s)
	e.subtunes["a.sid"] = 5

	a.Open(filesystem.Entry{Name: "a.sid"})
	a.Press(ButtonNext)
	if e.loaded != "b.sid" || e.track != 1 {
		t.Errorf("loaded %q track %d", e.loaded, e.track)
	}
}

func TestSkipUnsupported(t *testing.T) {
	tests := []struct {
		name      string
		skip      bool
		wantLoads []string
		wantState soundengine.State
	}{
		{"skip", true, []string{"a.sid", "bad.1", "bad.2", "c.sid"}, soundengine.Started},
		{"stop at failure", false, []string{"a.sid", "bad.1"}, soundengine.Error},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := config.Default()
			s.SkipUnsupported = tt.skip
			a, e := newTestApp(t, []string{"a.sid", "bad.1", "bad.2", "c.sid"}, s)

			a.Open(filesystem.Entry{Name: "a.sid"})
			e.state = soundengine.FinishedNatural
			a.Tick()
			if !slices.Equal(e.loads, tt.wantLoads) {
				t.Errorf("loads = %v, want %v", e.loads, tt.wantLoads)
			}
			if e.state != tt.wantState {
				t.Errorf("state %s, want %s", e.state, tt.wantState)
			}
		})
	}
}

func TestNextButtonAutoPlay(t *testing.T) {
	a, e := newTestApp(t, []string{"a.sid", "b.sid"}, config.Default())

	// from Finished the next file is only selected
	a.Press(ButtonNext)
	if e.loaded != "a.sid" || e.state != soundengine.Finished {
		t.Fatalf("loaded %q state %s", e.loaded, e.state)
	}

	a.Press(ButtonPlay)
	a.Press(ButtonNext)
	if e.loaded != "b.sid" || e.state != soundengine.Started {
		t.Errorf("loaded %q state %s", e.loaded, e.state)
	}

	a.Press(ButtonPrev)
	if e.loaded != "a.sid" || e.state != soundengine.Started {
		t.Errorf("prev: loaded %q state %s", e.loaded, e.state)
	}
}

func TestErrorStatus(t *testing.T) {
	a, e := newTestApp(t, []string{"bad.x"}, config.Default())
	a.Open(filesystem.Entry{Name: "bad.x"})
	a.Tick()
	if e.state != soundengine.Error || a.Status() != "malformed container" {
		t.Errorf("state %s, status %q", e.state, a.Status())
	}
}
