package report

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MediaFormat is the physical carrier an image was taken from.
type MediaFormat string

const (
	MediaFloppy35     MediaFormat = "3_5_inch_floppy"
	MediaFloppy525    MediaFormat = "5_25_inch_floppy"
	MediaFloppy8      MediaFormat = "8_inch_floppy"
	MediaCD           MediaFormat = "cd"
	MediaCDR          MediaFormat = "cd-r"
	MediaCDRW         MediaFormat = "cd-rw"
	MediaDVD          MediaFormat = "dvd"
	MediaFlash        MediaFormat = "flash"
	MediaHardDisk     MediaFormat = "hard_disk"
	MediaJazCartridge MediaFormat = "jaz_cartridge"
	MediaOther        MediaFormat = "other"
	MediaZipDisk      MediaFormat = "zip_disk"
)

// MediaFormats lists every accepted media format.
var MediaFormats = []MediaFormat{
	MediaFloppy35, MediaFloppy525, MediaFloppy8, MediaCD, MediaCDR, MediaCDRW,
	MediaDVD, MediaFlash, MediaHardDisk, MediaJazCartridge, MediaOther, MediaZipDisk,
}

// MediaDensity is the recording density of magnetic media.
type MediaDensity string

const (
	DensitySingle MediaDensity = "single"
	DensityDouble MediaDensity = "double"
	DensityQuad   MediaDensity = "quad"
	DensityHigh   MediaDensity = "high"
)

// MediaDensities lists every accepted density.
var MediaDensities = []MediaDensity{DensitySingle, DensityDouble, DensityQuad, DensityHigh}

// MaxLabelTranscription bounds the transcribed label text.
const MaxLabelTranscription = 16384

// ContainerMedia describes the physical item an image was read from. All
// fields are optional.
type ContainerMedia struct {
	Format             MediaFormat  `json:"media_format,omitempty"`
	Density            MediaDensity `json:"media_density,omitempty"`
	LabelTranscription string       `json:"label_transcription,omitempty"`
	Manufacturer       string       `json:"manufacturer,omitempty"`
	SerialNumber       string       `json:"serial_number,omitempty"`
}

// Validate checks the enumerations and the label length.
func (m ContainerMedia) Validate() error {
	if m.Format != "" && !contains(MediaFormats, m.Format) {
		return fmt.Errorf("unknown media format %q (expected one of %s)", m.Format, joinValues(MediaFormats))
	}
	if m.Density != "" && !contains(MediaDensities, m.Density) {
		return fmt.Errorf("unknown media density %q (expected one of %s)", m.Density, joinValues(MediaDensities))
	}
	if n := utf8.RuneCountInString(m.LabelTranscription); n > MaxLabelTranscription {
		return fmt.Errorf("label transcription is %d characters, limit is %d", n, MaxLabelTranscription)
	}
	return nil
}

// IsZero reports whether no media metadata was given.
func (m ContainerMedia) IsZero() bool {
	return m == ContainerMedia{}
}

func contains[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
