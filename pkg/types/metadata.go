package types

// DiskInformation holds container-level properties. Only meaningful when the
// container carries more than one internal track.
type DiskInformation struct {
	Title      string
	Ripper     string
	Converter  string
	Copyright  string
	TrackCount int
	Duration   int // seconds, 0 if unknown
}

// TrackInformation describes the currently selected track or subtune.
type TrackInformation struct {
	Title       string
	Author      string
	Copyright   string
	Comment     string
	TrackNumber int // 1-based
	Duration    int // seconds, 0 if unknown
	Position    int // seconds, -1 if unknown or not started
}

// MetaData is the value record a decoder exposes for the loaded container.
type MetaData struct {
	HasDiskInformation bool
	DiskInformation    DiskInformation
	TrackInformation   TrackInformation
}

// NewMetaData returns the empty record used before a container is loaded.
func NewMetaData() MetaData {
	return MetaData{
		TrackInformation: TrackInformation{Position: -1},
	}
}

// DisplayTitle returns the track title, falling back to the disk title.
func (m MetaData) DisplayTitle() string {
	if m.TrackInformation.Title != "" {
		return m.TrackInformation.Title
	}
	return m.DiskInformation.Title
}
