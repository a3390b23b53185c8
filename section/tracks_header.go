package section

import (
	"github.com/animblob/animblob/endian"
	"github.com/animblob/animblob/errs"
)

// TracksHeaderSize is the fixed byte size of TracksHeader (spec.md §3 item 2).
const TracksHeaderSize = 24

// TracksHeader is the format-identifying header shared by every track-array
// kind. It follows RawBufferHeader in the blob.
type TracksHeader struct {
	Tag               uint32
	Version           uint16
	Algorithm         uint8
	TrackType         uint8
	TrackCount        uint32
	SampleCount       uint32
	SampleRate        float32
	RotationFormat    uint8
	TranslationFormat uint8
	ScaleFormat       uint8
	Flags             uint8
}

// HasFlag reports whether the given bit is set in Flags.
func (h TracksHeader) HasFlag(bit uint8) bool {
	return h.Flags&bit != 0
}

// Bytes serializes h.
func (h TracksHeader) Bytes() []byte {
	b := make([]byte, TracksHeaderSize)
	e := endian.GetLittleEndianEngine()

	e.PutUint32(b[0:4], h.Tag)
	e.PutUint16(b[4:6], h.Version)
	b[6] = h.Algorithm
	b[7] = h.TrackType
	e.PutUint32(b[8:12], h.TrackCount)
	e.PutUint32(b[12:16], h.SampleCount)
	e.PutUint32(b[16:20], float32bits(h.SampleRate))
	b[20] = h.RotationFormat
	b[21] = h.TranslationFormat
	b[22] = h.ScaleFormat
	b[23] = h.Flags

	return b
}

// ParseTracksHeader parses a TracksHeader and validates its magic tag and
// version, matching section.NumericFlag.Validate()'s pattern of surfacing
// format violations as sentinel errors rather than panicking.
func ParseTracksHeader(data []byte) (TracksHeader, error) {
	if len(data) < TracksHeaderSize {
		return TracksHeader{}, errs.ErrInvalidHeaderSize
	}

	e := endian.GetLittleEndianEngine()
	h := TracksHeader{
		Tag:               e.Uint32(data[0:4]),
		Version:           e.Uint16(data[4:6]),
		Algorithm:         data[6],
		TrackType:         data[7],
		TrackCount:        e.Uint32(data[8:12]),
		SampleCount:       e.Uint32(data[12:16]),
		SampleRate:        float32frombits(e.Uint32(data[16:20])),
		RotationFormat:    data[20],
		TranslationFormat: data[21],
		ScaleFormat:       data[22],
		Flags:             data[23],
	}

	if h.Tag != MagicTag {
		return h, errs.ErrInvalidMagic
	}

	if h.Version > FormatVersion {
		return h, errs.ErrUnsupportedVersion
	}

	return h, nil
}
