package section

import (
	"github.com/animblob/animblob/endian"
	"github.com/animblob/animblob/errs"
)

// TransformTracksHeaderSize is the fixed byte size of TransformTracksHeader
// (spec.md §3 item 3). All offsets it carries are relative to the start of
// this header, per the spec's field-order contract.
const TransformTracksHeaderSize = 36

// TransformTracksHeader follows TracksHeader for transform-track blobs. It
// carries segment/sub-track counts and the relative offsets to every
// variable-length section that follows.
type TransformTracksHeader struct {
	SegmentCount      uint32
	RotationCount     uint32
	TranslationCount  uint32
	ScaleCount        uint32
	SegmentStartsOff  uint32 // offset to segment-start-indices table (0 if SegmentCount == 1)
	SegmentHeadersOff uint32
	SubTrackTypesOff  uint32
	ConstantPoolOff   uint32
	ClipRangePoolOff  uint32
}

// Bytes serializes h.
func (h TransformTracksHeader) Bytes() []byte {
	b := make([]byte, TransformTracksHeaderSize)
	e := endian.GetLittleEndianEngine()

	e.PutUint32(b[0:4], h.SegmentCount)
	e.PutUint32(b[4:8], h.RotationCount)
	e.PutUint32(b[8:12], h.TranslationCount)
	e.PutUint32(b[12:16], h.ScaleCount)
	e.PutUint32(b[16:20], h.SegmentStartsOff)
	e.PutUint32(b[20:24], h.SegmentHeadersOff)
	e.PutUint32(b[24:28], h.SubTrackTypesOff)
	e.PutUint32(b[28:32], h.ConstantPoolOff)
	e.PutUint32(b[32:36], h.ClipRangePoolOff)

	return b
}

// ParseTransformTracksHeader parses a TransformTracksHeader and checks that
// every offset is 4-byte aligned, per spec.md §6's alignment contract.
func ParseTransformTracksHeader(data []byte) (TransformTracksHeader, error) {
	if len(data) < TransformTracksHeaderSize {
		return TransformTracksHeader{}, errs.ErrInvalidHeaderSize
	}

	e := endian.GetLittleEndianEngine()
	h := TransformTracksHeader{
		SegmentCount:      e.Uint32(data[0:4]),
		RotationCount:     e.Uint32(data[4:8]),
		TranslationCount:  e.Uint32(data[8:12]),
		ScaleCount:        e.Uint32(data[12:16]),
		SegmentStartsOff:  e.Uint32(data[16:20]),
		SegmentHeadersOff: e.Uint32(data[20:24]),
		SubTrackTypesOff:  e.Uint32(data[24:28]),
		ConstantPoolOff:   e.Uint32(data[28:32]),
		ClipRangePoolOff:  e.Uint32(data[32:36]),
	}

	for _, off := range []uint32{h.SegmentHeadersOff, h.SubTrackTypesOff, h.ConstantPoolOff, h.ClipRangePoolOff} {
		if off%OffsetAlignment != 0 {
			return h, errs.ErrMisaligned
		}
	}

	if h.SegmentCount > 1 && h.SegmentStartsOff%OffsetAlignment != 0 {
		return h, errs.ErrMisaligned
	}

	return h, nil
}
