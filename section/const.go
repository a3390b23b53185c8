// Package section defines the on-disk byte layout of a compressed tracks
// blob: the fixed-size headers, the segment tables, the packed sub-track
// type bitset, and the bit-rate ladder, grounded on the teacher's
// section.NumericHeader / section.NumericFlag / section.numeric_index_entry
// fixed-size-record style (section/numeric_header.go,
// section/numeric_index_entry.go).
package section

// MagicTag identifies a valid compressed tracks blob. Stored in
// TracksHeader.Tag.
const MagicTag uint32 = 0xAC11AC11

// FormatVersion is the current wire format version written by this package.
const FormatVersion uint16 = 1

// Track-type tag values for TracksHeader.TrackType.
const (
	TrackTypeTransform uint8 = iota
	TrackTypeScalar
)

// TracksHeaderFlag bits, packed into TracksHeader.Flags.
const (
	FlagHasScale uint8 = 1 << iota
	FlagDefaultScaleZero
	FlagHasMetadata
	FlagHasDatabase
	FlagAdditiveBase
	FlagRotationDropW
)

// Alignment constants. The offsets stored in TransformTracksHeader (segment
// starts, segment headers, sub-track types, constant pool, clip range pool)
// are multiples of OffsetAlignment, which ParseTransformTracksHeader checks.
// Per-segment data blocks, and the range records inside them, are packed
// back-to-back without padding: neither OffsetAlignment nor RangeAlignment is
// applied to them. BlobAlignment is not checked by the writer or the parser.
// Without a metadata trailer the writer appends TrailingPadBytes of zero
// padding after the last segment's stream; with one, the trailer takes the
// padding's place.
const (
	BlobAlignment    = 16
	OffsetAlignment  = 4
	RangeAlignment   = 2
	TrailingPadBytes = 15
)

// Segment layout limits, per spec.md §4.6/§8.
const (
	IdealSegmentSampleCount = 16
	MaxSegmentSampleCount   = 31
	MaxSegmentCount         = 1 << 16
)

// SubTrackKind is the 2-bit tag stored per sub-track in the packed type map.
type SubTrackKind uint8

const (
	SubTrackDefault SubTrackKind = iota
	SubTrackConstant
	SubTrackAnimatedVariable
	SubTrackAnimatedRaw
)

// SubTrackStream enumerates the three sub-track streams in the canonical
// on-disk order (spec.md §4.8: "rotations first, then translations, then
// scales").
type SubTrackStream uint8

const (
	StreamRotation SubTrackStream = iota
	StreamTranslation
	StreamScale
	numStreams = int(StreamScale) + 1
)

// BitRate is an index into the fixed ladder described by spec.md §3/§4.7.
type BitRate uint8

// Ladder is the fixed bit-rate-index -> bits-per-component table. Index 0 is
// the "constant within segment" sentinel (zero animated bits); the last
// entry is the "raw" sentinel (32 bits, clip range bypassed).
var Ladder = [...]uint8{
	0, // 0: constant
	3, 4, 5, 7, 8, 9, 11, 12, 13, 15, 16, 19, // 1..12: variable rates
	32, // 13: raw
}

// BitRateConstant and BitRateRaw are the sentinel ladder indices.
const (
	BitRateConstant BitRate = 0
	BitRateRaw      BitRate = BitRate(len(Ladder) - 1)
)

// MaxBitRate is the highest non-raw variable index, one step below raw.
const MaxBitRate = BitRate(len(Ladder) - 2)

// NumBitsAtRate returns the number of bits per component stored on disk for
// the given ladder index.
func NumBitsAtRate(r BitRate) int {
	return int(Ladder[r])
}

// IsConstant reports whether r is the constant sentinel.
func (r BitRate) IsConstant() bool { return r == BitRateConstant }

// IsRaw reports whether r is the raw (32-bit, range-bypassing) sentinel.
func (r BitRate) IsRaw() bool { return r == BitRateRaw }
