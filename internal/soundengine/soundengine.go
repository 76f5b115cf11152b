// Package soundengine drives decoders from an output stream callback and
// keeps the playback state machine.
//
// Thread Safety Model:
//   - the stream callback holds mu for the duration of one Process call
//   - every command that touches the decoder takes the same mu
//   - cmdMu serialises commands and stream operations, which are never
//     made while mu is held
package soundengine

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/drgolem/chipplay/internal/output"
	"github.com/drgolem/chipplay/pkg/types"
)

// State is the playback state.
type State int

const (
	Finished        State = iota // idle, nothing producing audio
	Started                      // callback pulling frames
	Paused                       // decoder kept, callback silent
	FinishedNatural              // stream exhausted on its own
	Error                        // decode or load failure, see Err
)

func (s State) String() string {
	switch s {
	case Finished:
		return "finished"
	case Started:
		return "started"
	case Paused:
		return "paused"
	case FinishedNatural:
		return "finished_natural"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// DecoderFinder selects the decoder for a file name.
type DecoderFinder interface {
	ForFile(name string) (types.Decoder, error)
}

// Engine owns the active decoder and its output stream.
type Engine struct {
	finder          DecoderFinder
	backend         output.Backend
	framesPerBuffer int

	mu       sync.Mutex
	decoder  types.Decoder
	state    State
	ready    bool // container loaded and neither stopped nor exhausted
	err      error
	meta     types.MetaData
	format   types.AudioFormat
	fileName string

	cmdMu  sync.Mutex
	stream output.Stream

	frameBytes atomic.Int64
	played     atomic.Uint64
	startTime  atomic.Int64 // unix nanoseconds
}

// New creates an idle engine. framesPerBuffer is only reported in the
// playback status.
func New(finder DecoderFinder, backend output.Backend, framesPerBuffer int) *Engine {
	return &Engine{
		finder:          finder,
		backend:         backend,
		framesPerBuffer: framesPerBuffer,
		meta:            types.NewMetaData(),
	}
}

// fill is the stream callback.
func (e *Engine) fill(buf []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Started || e.decoder == nil {
		clear(buf)
		return
	}

	status, err := e.decoder.Process(buf)
	switch status {
	case types.StatusEnded:
		e.state = FinishedNatural
		e.ready = false
	case types.StatusError:
		e.state = Error
		e.ready = false
		e.err = err
	}
	if fb := e.frameBytes.Load(); fb > 0 {
		e.played.Add(uint64(int64(len(buf)) / fb))
	}
}

// Load selects a decoder by the file's extension and plays the bytes into
// it. A failed load leaves the previous container in place and moves the
// engine to Error.
func (e *Engine) Load(name string, data []byte, defaultTrack bool) error {
	e.cmdMu.Lock()
	defer e.cmdMu.Unlock()

	dec, err := e.finder.ForFile(name)
	if err != nil {
		e.fail(err)
		return err
	}

	e.mu.Lock()
	if err := dec.Play(data, defaultTrack); err != nil {
		e.state = Error
		e.err = err
		e.mu.Unlock()
		slog.Warn("Load failed", "file", filepath.Base(name), "decoder", dec.Name(), "error", err)
		return err
	}
	if e.decoder != nil && e.decoder != dec {
		e.decoder.Stop()
	}
	e.decoder = dec
	e.format = dec.GetFormat()
	e.meta = dec.MetaData()
	e.fileName = filepath.Base(name)
	e.ready = true
	if e.state != Error {
		e.state = Finished
	}
	e.frameBytes.Store(int64(e.format.BytesPerFrame()))
	e.played.Store(0)
	e.mu.Unlock()

	e.stopStream()

	slog.Info("File loaded",
		"file", e.fileName,
		"decoder", dec.Name(),
		"sample_rate", e.format.SampleRate,
		"channels", e.format.Channels,
		"track", e.meta.TrackInformation.TrackNumber)
	return nil
}

func (e *Engine) fail(err error) {
	e.mu.Lock()
	e.state = Error
	e.err = err
	e.mu.Unlock()
}

// Play resumes from Paused, or starts a loaded container that is ready.
// From any other state it does nothing.
func (e *Engine) Play() error {
	e.cmdMu.Lock()
	defer e.cmdMu.Unlock()

	e.mu.Lock()
	resume := e.state == Paused
	startable := (e.state == Finished || e.state == FinishedNatural) && e.decoder != nil && e.ready
	format := e.format
	e.mu.Unlock()
	if !resume && !startable {
		return nil
	}

	if err := e.openStream(format); err != nil {
		e.fail(err)
		return err
	}

	e.mu.Lock()
	e.state = Started
	e.mu.Unlock()
	if !resume {
		e.startTime.Store(time.Now().UnixNano())
	}

	if err := e.stream.Start(); err != nil {
		e.fail(err)
		return err
	}
	return nil
}

// Pause keeps the decoder and silences output. Only valid from Started.
func (e *Engine) Pause() error {
	e.cmdMu.Lock()
	defer e.cmdMu.Unlock()

	e.mu.Lock()
	if e.state != Started {
		e.mu.Unlock()
		return nil
	}
	e.state = Paused
	e.mu.Unlock()

	if e.stream != nil {
		return e.stream.Stop()
	}
	return nil
}

// Stop halts the decoder. The engine stays in Error if it was there.
func (e *Engine) Stop() error {
	e.cmdMu.Lock()
	defer e.cmdMu.Unlock()

	e.mu.Lock()
	if e.decoder != nil {
		e.decoder.Stop()
	}
	e.ready = false
	if e.state != Error {
		e.state = Finished
	}
	e.mu.Unlock()

	return e.stopStream()
}

// NextTrack moves the decoder to the next subtune.
func (e *Engine) NextTrack() bool {
	return e.moveTrack(types.Decoder.NextTrack)
}

// PrevTrack moves the decoder to the previous subtune.
func (e *Engine) PrevTrack() bool {
	return e.moveTrack(types.Decoder.PrevTrack)
}

func (e *Engine) moveTrack(move func(types.Decoder) bool) bool {
	e.cmdMu.Lock()
	defer e.cmdMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.decoder == nil || e.state == Error {
		return false
	}
	if !move(e.decoder) {
		return false
	}
	e.ready = true
	e.meta = e.decoder.MetaData()
	e.played.Store(0)
	e.startTime.Store(time.Now().UnixNano())
	if e.state == FinishedNatural {
		e.state = Started
	}
	slog.Debug("Track changed", "track", e.meta.TrackInformation.TrackNumber, "state", e.state)
	return true
}

// State returns the current playback state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// MetaData returns the loaded container's metadata with a fresh position.
func (e *Engine) MetaData() types.MetaData {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.decoder != nil {
		e.meta = e.decoder.MetaData()
	}
	return e.meta
}

// Loaded reports whether a container has been loaded.
func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.decoder != nil
}

// Err returns the last error, nil once cleared.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// ClearError acknowledges the last error and leaves the Error state.
func (e *Engine) ClearError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = nil
	if e.state == Error {
		e.state = Finished
	}
}

// GetPlaybackStatus implements types.PlaybackMonitor.
func (e *Engine) GetPlaybackStatus() types.PlaybackStatus {
	e.mu.Lock()
	format, name := e.format, e.fileName
	var decoder string
	if e.decoder != nil {
		decoder = e.decoder.Name()
	}
	e.mu.Unlock()

	var elapsed time.Duration
	if start := e.startTime.Load(); start != 0 {
		elapsed = time.Since(time.Unix(0, start))
	}
	return types.PlaybackStatus{
		FileName:        name,
		Decoder:         decoder,
		SampleRate:      format.SampleRate,
		Channels:        format.Channels,
		BitsPerSample:   format.BitsPerSample(),
		FramesPerBuffer: e.framesPerBuffer,
		PlayedSamples:   e.played.Load(),
		ElapsedTime:     elapsed,
	}
}

// Cleanup stops playback and closes the stream.
func (e *Engine) Cleanup() {
	if err := e.Stop(); err != nil {
		slog.Warn("Failed to stop stream", "error", err)
	}
	e.cmdMu.Lock()
	defer e.cmdMu.Unlock()
	e.closeStream()
}

// openStream makes sure a stream for format is open. Callers hold cmdMu.
func (e *Engine) openStream(format types.AudioFormat) error {
	if e.stream != nil && e.stream.Format() == format {
		return nil
	}
	e.closeStream()

	s, err := e.backend.Open(format, e.fill)
	if err != nil {
		return fmt.Errorf("open %s stream: %w", e.backend.Name(), err)
	}
	e.stream = s
	return nil
}

func (e *Engine) stopStream() error {
	if e.stream == nil {
		return nil
	}
	return e.stream.Stop()
}

func (e *Engine) closeStream() {
	if e.stream == nil {
		return
	}
	if err := e.stream.Close(); err != nil {
		slog.Warn("Failed to close stream", "error", err)
	}
	e.stream = nil
}
