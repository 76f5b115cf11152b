// Package app connects the file explorer with the sound engine: selection,
// auto-advance and the player buttons.
package app

import (
	"log/slog"
	"path/filepath"

	"github.com/samber/lo"

	"github.com/drgolem/chipplay/internal/config"
	"github.com/drgolem/chipplay/internal/filesystem"
	"github.com/drgolem/chipplay/internal/soundengine"
	"github.com/drgolem/chipplay/pkg/types"
)

// Status messages shown for the engine states.
const (
	StatusPlaying = "Playing"
	StatusPaused  = "Paused"
	StatusReady   = "Ready"
)

// Engine is the part of the sound engine the application drives.
type Engine interface {
	Load(name string, data []byte, defaultTrack bool) error
	Play() error
	Pause() error
	Stop() error
	NextTrack() bool
	PrevTrack() bool
	State() soundengine.State
	MetaData() types.MetaData
	Err() error
	ClearError()
}

// Files is the directory listing the application browses.
type Files interface {
	Path() string
	Entries() []filesystem.Entry
	Files() []string
	LastFolder() string
	Navigate(name string) error
	ReadFile(name string) ([]byte, error)
	Err() error
	ClearError()
}

// Button is a player control.
type Button int

const (
	ButtonPlay Button = iota
	ButtonStop
	ButtonNext
	ButtonPrev
)

func (b Button) String() string {
	switch b {
	case ButtonPlay:
		return "play"
	case ButtonStop:
		return "stop"
	case ButtonNext:
		return "next"
	case ButtonPrev:
		return "prev"
	}
	return "unknown"
}

// App is not safe for concurrent use; the UI loop owns it.
type App struct {
	engine   Engine
	files    Files
	settings config.Settings

	lastSelected string
	status       string
}

func New(engine Engine, files Files, settings config.Settings) *App {
	return &App{
		engine:   engine,
		files:    files,
		settings: settings,
		status:   StatusReady,
	}
}

// Tick advances on natural end and refreshes the status message. Call it
// once per UI frame.
func (a *App) Tick() {
	if err := a.files.Err(); err != nil {
		a.status = err.Error()
		return
	}

	switch a.engine.State() {
	case soundengine.FinishedNatural:
		a.selectNextTrack(a.settings.SkipUnsupported, true)
	case soundengine.Started:
		a.status = StatusPlaying
	case soundengine.Paused:
		a.status = StatusPaused
	case soundengine.Finished:
		a.status = StatusReady
	case soundengine.Error:
		if err := a.engine.Err(); err != nil {
			a.status = err.Error()
		}
	}
}

// Status is the message for the status line.
func (a *App) Status() string {
	return a.status
}

// Selected is the highlighted explorer entry: the last file chosen, or the
// folder just left.
func (a *App) Selected() string {
	if a.lastSelected != "" {
		return a.lastSelected
	}
	return a.files.LastFolder()
}

// Open acts on an explorer entry. Folders are entered; files are loaded and
// played unless already selected and still live.
func (a *App) Open(entry filesystem.Entry) {
	state := a.engine.State()

	if entry.Folder {
		a.lastSelected = ""
		if err := a.files.Navigate(entry.Name); err != nil {
			slog.Warn("Navigation failed", "folder", entry.Name, "error", err)
			return
		}
		a.files.ClearError()
		if state == soundengine.Error {
			a.engine.ClearError()
		}
		return
	}

	if a.lastSelected != entry.Name || state == soundengine.Finished {
		if a.load(entry.Name) {
			a.play()
		}
	}
}

// Press handles a player button according to the engine state.
func (a *App) Press(b Button) {
	state := a.engine.State()

	switch b {
	case ButtonPlay:
		switch state {
		case soundengine.Started:
			if err := a.engine.Pause(); err != nil {
				slog.Warn("Pause failed", "error", err)
			}
		case soundengine.Paused:
			a.play()
		case soundengine.Finished:
			if a.lastSelected != "" && a.load(a.lastSelected) {
				a.play()
			}
		}
	case ButtonStop:
		if state == soundengine.Started || state == soundengine.Paused {
			if err := a.engine.Stop(); err != nil {
				slog.Warn("Stop failed", "error", err)
			}
		}
	case ButtonNext, ButtonPrev:
		if state == soundengine.FinishedNatural {
			return
		}
		autoPlay := state != soundengine.Finished && state != soundengine.Error
		if b == ButtonNext {
			a.selectNextTrack(a.settings.SkipUnsupported, autoPlay)
		} else {
			a.selectPrevTrack(a.settings.SkipUnsupported, autoPlay)
		}
	}
}

func (a *App) selectNextTrack(skipInvalid, autoPlay bool) {
	if !a.settings.SkipSubtunes && a.engine.NextTrack() {
		return
	}
	a.selectFile(nextFile, skipInvalid, autoPlay)
}

func (a *App) selectPrevTrack(skipInvalid, autoPlay bool) {
	if !a.settings.SkipSubtunes && a.engine.PrevTrack() {
		return
	}
	a.selectFile(prevFile, skipInvalid, autoPlay)
}

// selectFile loads the neighbouring file, moving on past failures while
// skipInvalid. Running off the listing stops the engine.
func (a *App) selectFile(neighbour func([]string, string) string, skipInvalid, autoPlay bool) {
	files := a.files.Files()
	for range files {
		name := neighbour(files, a.lastSelected)
		if name == "" {
			break
		}
		if a.load(name) {
			if autoPlay {
				a.play()
			}
			return
		}
		if !skipInvalid {
			return
		}
	}
	if err := a.engine.Stop(); err != nil {
		slog.Warn("Stop failed", "error", err)
	}
}

func nextFile(files []string, current string) string {
	if len(files) == 0 {
		return ""
	}
	if current == "" {
		return files[0]
	}
	if i := lo.IndexOf(files, current); i >= 0 && i+1 < len(files) {
		return files[i+1]
	}
	return ""
}

func prevFile(files []string, current string) string {
	if len(files) == 0 {
		return ""
	}
	if current == "" {
		return files[len(files)-1]
	}
	if i := lo.IndexOf(files, current); i > 0 {
		return files[i-1]
	}
	return ""
}

// load reads and loads a file of the current directory. The selection
// moves to it even when loading fails.
func (a *App) load(name string) bool {
	a.lastSelected = name
	if a.engine.State() == soundengine.Error {
		a.engine.ClearError()
	}

	data, err := a.files.ReadFile(name)
	if err != nil {
		slog.Error("Failed to read file", "file", name, "error", err)
		a.status = err.Error()
		return false
	}
	path := filepath.Join(a.files.Path(), name)
	if err := a.engine.Load(path, data, !a.settings.AlwaysStartFirstTrack); err != nil {
		slog.Error("Failed to load file", "file", name, "error", err)
		a.status = err.Error()
		return false
	}
	return true
}

func (a *App) play() {
	if err := a.engine.Play(); err != nil {
		slog.Error("Playback failed", "error", err)
		a.status = err.Error()
	}
}
