// Package filesystem lists local directories for the explorer and keeps the
// current listing fresh with fsnotify.
package filesystem

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"
)

// ParentName is the synthetic entry that navigates one level up.
const ParentName = ".."

// Entry is one item of a directory listing. Size is 0 for folders.
type Entry struct {
	Name   string
	Folder bool
	Size   int64
}

// State of the manager.
type State int

const (
	Ready State = iota
	Error
)

func (s State) String() string {
	if s == Error {
		return "error"
	}
	return "ready"
}

// List reads dir. Dotfiles are hidden and only regular files and
// directories are kept. Folders come first, then case-insensitive name
// order.
func List(dir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	entries := lo.FilterMap(dirEntries, func(d os.DirEntry, _ int) (Entry, bool) {
		name := d.Name()
		if strings.HasPrefix(name, ".") {
			return Entry{}, false
		}
		// Stat follows symlinks
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			return Entry{}, false
		}
		switch {
		case info.IsDir():
			return Entry{Name: name, Folder: true}, true
		case info.Mode().IsRegular():
			return Entry{Name: name, Size: info.Size()}, true
		}
		return Entry{}, false
	})

	slices.SortStableFunc(entries, compareEntries)
	return entries, nil
}

func compareEntries(a, b Entry) int {
	if a.Folder != b.Folder {
		if a.Folder {
			return -1
		}
		return 1
	}
	return cmp.Or(
		cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)),
		cmp.Compare(a.Name, b.Name),
	)
}

// Manager tracks the current directory and its listing.
type Manager struct {
	mu         sync.Mutex
	path       string
	entries    []Entry
	lastFolder string // folder we came up from, for selection
	err        error

	watcher *fsnotify.Watcher
	changed chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
}

// New lists path and starts watching it. Watch failures are logged and
// leave a manager without live refresh.
func New(path string) (*Manager, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	entries, err := List(abs)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		path:    abs,
		entries: withParent(abs, entries),
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("Directory watch disabled", "error", err)
		return m, nil
	}
	if err := watcher.Add(abs); err != nil {
		slog.Warn("Failed to watch directory", "path", abs, "error", err)
	}
	m.watcher = watcher
	m.wg.Add(1)
	go m.watch()
	return m, nil
}

func withParent(dir string, entries []Entry) []Entry {
	if filepath.Dir(dir) == dir {
		return entries
	}
	return append([]Entry{{Name: ParentName, Folder: true}}, entries...)
}

func (m *Manager) watch() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Write) {
				continue
			}
			m.mu.Lock()
			current := filepath.Dir(event.Name) == m.path || event.Name == m.path
			if current {
				m.refreshLocked()
			}
			m.mu.Unlock()
			if current {
				m.notify()
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Directory watch error", "error", err)
		}
	}
}

func (m *Manager) refreshLocked() {
	entries, err := List(m.path)
	if err != nil {
		m.err = err
		return
	}
	m.entries = withParent(m.path, entries)
}

func (m *Manager) notify() {
	select {
	case m.changed <- struct{}{}:
	default:
	}
}

// Changed signals after the current listing was refreshed by a watch event.
func (m *Manager) Changed() <-chan struct{} {
	return m.changed
}

// Navigate enters the named folder of the current listing, or goes up for
// ParentName. On failure the listing is kept and the error is stored.
func (m *Manager) Navigate(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target := filepath.Join(m.path, name)
	if name == ParentName {
		target = filepath.Dir(m.path)
	}
	info, err := os.Stat(target)
	if err == nil && !info.IsDir() {
		err = fmt.Errorf("%s is not a directory", target)
	}
	if err != nil {
		m.err = err
		return err
	}
	entries, err := List(target)
	if err != nil {
		m.err = err
		return err
	}

	if m.watcher != nil {
		_ = m.watcher.Remove(m.path)
		if err := m.watcher.Add(target); err != nil {
			slog.Warn("Failed to watch directory", "path", target, "error", err)
		}
	}
	m.lastFolder = ""
	if name == ParentName {
		m.lastFolder = filepath.Base(m.path)
	}
	m.path = target
	m.entries = withParent(target, entries)
	slog.Debug("Directory changed", "path", target, "entries", len(entries))
	return nil
}

// Refresh re-reads the current directory.
func (m *Manager) Refresh() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshLocked()
	return m.err
}

// Path returns the absolute current directory.
func (m *Manager) Path() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.path
}

// Entries returns a copy of the current listing.
func (m *Manager) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.entries)
}

// Files returns the names of the non-folder entries in listing order.
func (m *Manager) Files() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lo.FilterMap(m.entries, func(e Entry, _ int) (string, bool) {
		return e.Name, !e.Folder
	})
}

// LastFolder is the folder left by the last upward navigation.
func (m *Manager) LastFolder() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastFolder
}

// ReadFile reads a file of the current directory.
func (m *Manager) ReadFile(name string) ([]byte, error) {
	m.mu.Lock()
	path := filepath.Join(m.path, name)
	m.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Error
	}
	return Ready
}

// Err returns the last navigation or refresh error.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Manager) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = nil
}

// Close stops watching.
func (m *Manager) Close() error {
	if m.watcher == nil {
		return nil
	}
	close(m.done)
	err := m.watcher.Close()
	m.wg.Wait()
	if errors.Is(err, fsnotify.ErrClosed) {
		return nil
	}
	return err
}
