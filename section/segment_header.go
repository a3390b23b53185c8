package section

import (
	"github.com/animblob/animblob/endian"
	"github.com/animblob/animblob/errs"
)

// SegmentHeaderSize is the fixed byte size of one SegmentHeader record
// (spec.md §3 item 5).
const SegmentHeaderSize = 16

// SegmentHeader is one fixed-size record in the segment header table: where
// a segment's per-track format/range/bitstream data lives (relative to
// TransformTracksHeader), how many animated bits one keyframe of this
// segment occupies, and how many samples it covers.
type SegmentHeader struct {
	DataOffset       uint32
	AnimatedBitCount uint32
	SampleCount      uint16
	_                uint16 // padding to keep the record 4-byte aligned
	RangeDataOffset  uint32
}

// Bytes serializes h.
func (h SegmentHeader) Bytes() []byte {
	b := make([]byte, SegmentHeaderSize)
	e := endian.GetLittleEndianEngine()

	e.PutUint32(b[0:4], h.DataOffset)
	e.PutUint32(b[4:8], h.AnimatedBitCount)
	e.PutUint16(b[8:10], h.SampleCount)
	e.PutUint32(b[12:16], h.RangeDataOffset)

	return b
}

// ParseSegmentHeader parses one SegmentHeader record.
func ParseSegmentHeader(data []byte) (SegmentHeader, error) {
	if len(data) < SegmentHeaderSize {
		return SegmentHeader{}, errs.ErrInvalidHeaderSize
	}

	e := endian.GetLittleEndianEngine()

	return SegmentHeader{
		DataOffset:       e.Uint32(data[0:4]),
		AnimatedBitCount: e.Uint32(data[4:8]),
		SampleCount:      e.Uint16(data[8:10]),
		RangeDataOffset:  e.Uint32(data[12:16]),
	}, nil
}

// SegmentStartSentinel terminates the segment-start-indices table (spec.md
// §3 item 4).
const SegmentStartSentinel uint32 = 0xFFFFFFFF
