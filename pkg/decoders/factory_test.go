package decoders

import (
	"errors"
	"slices"
	"testing"

	"github.com/drgolem/chipplay/pkg/types"
)

type fakeDecoder struct {
	name     string
	exts     []string
	setupErr error
	cleaned  int
}

func (f *fakeDecoder) Name() string                         { return f.name }
func (f *fakeDecoder) Setup() error                         { return f.setupErr }
func (f *fakeDecoder) Cleanup()                             { f.cleaned++ }
func (f *fakeDecoder) Extensions() []string                 { return f.exts }
func (f *fakeDecoder) CanRead(ext string) bool              { return slices.Contains(f.exts, ext) }
func (f *fakeDecoder) GetFormat() types.AudioFormat         { return types.AudioFormat{} }
func (f *fakeDecoder) Play([]byte, bool) error              { return nil }
func (f *fakeDecoder) Stop()                                {}
func (f *fakeDecoder) Process([]byte) (types.Status, error) { return types.StatusEnded, nil }
func (f *fakeDecoder) NextTrack() bool                      { return false }
func (f *fakeDecoder) PrevTrack() bool                      { return false }
func (f *fakeDecoder) MetaData() types.MetaData             { return types.NewMetaData() }

func TestFirstMatchWins(t *testing.T) {
	a := &fakeDecoder{name: "a", exts: []string{".x", ".y"}}
	b := &fakeDecoder{name: "b", exts: []string{".y", ".z"}}
	broken := &fakeDecoder{name: "broken", exts: []string{".w"}, setupErr: types.ErrAssetMissing}

	r := NewRegistry()
	r.Register(a)
	if err := r.Register(broken); !errors.Is(err, types.ErrAssetMissing) {
		t.Errorf("Register(broken) = %v", err)
	}
	r.Register(b)

	tests := []struct {
		ext  string
		want string
	}{
		{".x", "a"},
		{".y", "a"},
		{".z", "b"},
		{".w", ""},
		{".q", ""},
	}
	for _, tt := range tests {
		d, err := r.Find(tt.ext)
		if tt.want == "" {
			if !errors.Is(err, types.ErrUnsupportedFormat) {
				t.Errorf("Find(%q) err = %v", tt.ext, err)
			}
			continue
		}
		if err != nil || d.Name() != tt.want {
			t.Errorf("Find(%q) = %v, %v; want %s", tt.ext, d, err, tt.want)
		}
	}

	if got := len(r.Decoders()); got != 2 {
		t.Errorf("%d usable decoders, want 2", got)
	}
	if got := len(r.Entries()); got != 3 {
		t.Errorf("%d entries, want 3", got)
	}
	if got := r.Extensions(); !slices.Equal(got, []string{".x", ".y", ".z"}) {
		t.Errorf("extensions = %v", got)
	}

	r.Cleanup()
	if a.cleaned != 1 || b.cleaned != 1 || broken.cleaned != 1 {
		t.Error("Cleanup missed a decoder")
	}
}

func TestForFile(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeDecoder{name: "sid", exts: []string{".sid"}})
	if !r.Supported("/music/Commando.SID") {
		t.Error("upper-case extension not matched")
	}
	if r.Supported("README") {
		t.Error("file without extension matched")
	}
	if got := Ext("a/b.c/Tune.Mod"); got != ".mod" {
		t.Errorf("Ext = %q", got)
	}
}

func TestDefaultOrder(t *testing.T) {
	r := NewDefault(Options{DataPath: t.TempDir()})
	t.Cleanup(r.Cleanup)

	var names []string
	for _, e := range r.Entries() {
		names = append(names, e.Decoder.Name())
	}
	if !slices.Equal(names, []string{"gme", "sidplay", "dumb", "sc68"}) {
		t.Errorf("registration order = %v", names)
	}

	// no ROMs in the data path
	if _, err := r.Find(".sid"); !errors.Is(err, types.ErrUnsupportedFormat) {
		t.Errorf("sidplay usable without ROMs: %v", err)
	}
	for _, ext := range []string{".nsf", ".vgm", ".vgz", ".mod", ".ym"} {
		if _, err := r.Find(ext); err != nil {
			t.Errorf("Find(%q): %v", ext, err)
		}
	}
}
