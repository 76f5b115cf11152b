package types

import "errors"

// Error kinds shared by all decoders. Wrap them with fmt.Errorf("...: %w")
// and test with errors.Is.
var (
	// ErrAssetMissing indicates a required ROM or data file was not found during Setup
	ErrAssetMissing = errors.New("asset missing")

	// ErrUnsupportedFormat indicates no decoder accepts the file, or the
	// container asks for hardware the backend cannot emulate
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrMalformedContainer indicates the file could not be parsed
	ErrMalformedContainer = errors.New("malformed container")

	// ErrDecodeFault indicates the emulation failed while rendering audio
	ErrDecodeFault = errors.New("decode fault")

	// ErrNotLoaded indicates an operation that needs a loaded container
	ErrNotLoaded = errors.New("no container loaded")
)
