package decoders

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/drgolem/chipplay/pkg/decoders/dumb"
	"github.com/drgolem/chipplay/pkg/decoders/gme"
	"github.com/drgolem/chipplay/pkg/decoders/sc68"
	"github.com/drgolem/chipplay/pkg/decoders/sidplay"
	"github.com/drgolem/chipplay/pkg/types"
)

// Entry describes one registered backend, usable or not.
type Entry struct {
	Decoder types.Decoder
	Err     error // Setup failure, nil when usable
}

// Registry keeps decoders in registration order. The first usable decoder
// whose CanRead accepts an extension wins.
type Registry struct {
	entries []Entry
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Options configure the default backends.
type Options struct {
	DataPath      string        // directory with the C64 ROM images
	SIDSongLength time.Duration // 0 plays SID tunes endlessly
}

// NewDefault registers the built-in backends: gme, sidplay, dumb, sc68.
func NewDefault(opts Options) *Registry {
	r := NewRegistry()
	r.Register(gme.NewDecoder())
	r.Register(sidplay.NewDecoder(
		sidplay.WithDataPath(opts.DataPath),
		sidplay.WithSongLength(opts.SIDSongLength)))
	r.Register(dumb.NewDecoder())
	r.Register(sc68.NewDecoder())
	return r
}

// Register sets the decoder up and appends it. A decoder whose Setup fails
// stays listed but is never selected.
func (r *Registry) Register(d types.Decoder) error {
	err := d.Setup()
	if err != nil {
		slog.Warn("decoder disabled", "decoder", d.Name(), "error", err)
		err = fmt.Errorf("setup %s: %w", d.Name(), err)
	}
	r.entries = append(r.entries, Entry{Decoder: d, Err: err})
	return err
}

// Find returns the first usable decoder accepting ext, which must be
// lower-cased and include the leading dot.
func (r *Registry) Find(ext string) (types.Decoder, error) {
	for _, e := range r.entries {
		if e.Err == nil && e.Decoder.CanRead(ext) {
			return e.Decoder, nil
		}
	}
	return nil, fmt.Errorf("%w: no decoder for %q", types.ErrUnsupportedFormat, ext)
}

// ForFile picks the decoder by the file name's extension.
func (r *Registry) ForFile(name string) (types.Decoder, error) {
	return r.Find(Ext(name))
}

// Ext returns the lower-cased extension of name, with the dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// Decoders returns the usable decoders in registration order.
func (r *Registry) Decoders() []types.Decoder {
	return lo.FilterMap(r.entries, func(e Entry, _ int) (types.Decoder, bool) {
		return e.Decoder, e.Err == nil
	})
}

// Entries returns every registered backend, including disabled ones.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Extensions returns the extensions the usable decoders accept.
func (r *Registry) Extensions() []string {
	return lo.Uniq(lo.FlatMap(r.Decoders(), func(d types.Decoder, _ int) []string {
		return d.Extensions()
	}))
}

// Supported reports whether some usable decoder accepts the file name.
func (r *Registry) Supported(name string) bool {
	_, err := r.ForFile(name)
	return err == nil
}

// Cleanup releases every registered decoder.
func (r *Registry) Cleanup() {
	for _, e := range r.entries {
		e.Decoder.Cleanup()
	}
}
