// Package acl assembles a quantized clip.Context into the immutable
// compressed tracks blob (spec.md §3/§4.8) and provides the matching
// sample-time decoder (spec.md §4.9). The name mirrors the teacher's
// top-level mebo.go convenience layer: a small set of free functions over
// the heavy lifting done in clip/, section/, and bitpack/.
package acl

import (
	"math"

	"github.com/animblob/animblob/bitpack"
	"github.com/animblob/animblob/clip"
	"github.com/animblob/animblob/format"
	"github.com/animblob/animblob/internal/hash"
	"github.com/animblob/animblob/section"
	"github.com/animblob/animblob/transform"
)

// CompressResult is the successful output of Compress: the finished blob
// plus any non-fatal warnings the quantizer recorded along the way
// (spec.md §4.7.2c, §7).
type CompressResult struct {
	Bytes    []byte
	Warnings []clip.Warning
}

// CompressTransformClip runs the full pipeline described by spec.md §2 over
// a validated transform track array and assembles the resulting blob. This
// is the "compress_transform_clip" entry point from spec.md §6.
func CompressTransformClip(tracks transform.TrackArray, settings *clip.Settings) (*CompressResult, error) {
	ctx, err := clip.NewContext(tracks, settings)
	if err != nil {
		return nil, err
	}

	stages := []func(*clip.Context) error{
		clip.Reformat,
		clip.ExtractClipRanges,
		clip.CollapseConstants,
		clip.NormalizeClip,
		clip.Segment,
		clip.ExtractSegmentRanges,
		clip.NormalizeSegment,
		clip.Quantize,
	}

	for _, stage := range stages {
		if err := stage(ctx); err != nil {
			return nil, err
		}
	}

	blob, err := assemble(ctx)
	if err != nil {
		return nil, err
	}

	ctx.Stage = clip.StageWritten

	return &CompressResult{Bytes: blob, Warnings: ctx.Warnings}, nil
}

// layout accumulates the byte offsets computed while sizing the blob so
// assemble can write each section without recomputing them.
type layout struct {
	ttOffset           int // transform_tracks_header's absolute offset
	segmentStartsOff   uint32
	segmentHeadersOff  uint32
	subTrackTypesOff   uint32
	constantPoolOff    uint32
	clipRangePoolOff   uint32
	segmentDataOffsets []uint32
}

func assemble(ctx *clip.Context) ([]byte, error) {
	settings := ctx.Settings
	numBones := len(ctx.Bones)
	rotComp := rotationFormatComponents(settings.RotationFormat)

	animated := classify(ctx)

	l := layout{ttOffset: section.RawBufferHeaderSize + section.TracksHeaderSize}
	cursor := uint32(section.TransformTracksHeaderSize)

	if len(ctx.Segments) > 1 {
		l.segmentStartsOff = cursor
		cursor += uint32(len(ctx.Segments)+1) * 4
	}

	l.segmentHeadersOff = cursor
	cursor += uint32(len(ctx.Segments)) * section.SegmentHeaderSize

	l.subTrackTypesOff = cursor
	cursor += uint32(section.SubTrackTypeWordsSize(numBones, numBones, numBones))

	l.constantPoolOff = cursor
	constantBytes := constantPoolSize(ctx, rotComp)
	cursor += uint32(constantBytes)

	l.clipRangePoolOff = cursor
	rangeBytes := clipRangePoolSize(animated, rotComp)
	cursor += uint32(rangeBytes)

	l.segmentDataOffsets = make([]uint32, len(ctx.Segments))
	for i, seg := range ctx.Segments {
		l.segmentDataOffsets[i] = cursor
		cursor += uint32(segmentDataSize(ctx, seg, animated, rotComp))
	}

	totalBeforePad := int(l.ttOffset) + int(cursor)

	withMetadata := hasMetadata(ctx.Settings)

	var trailer []byte
	if withMetadata {
		var err error
		trailer, err = buildMetadataTrailer(ctx)
		if err != nil {
			return nil, err
		}
	}

	tailSize := section.TrailingPadBytes
	if withMetadata {
		tailSize = len(trailer)
	}

	totalSize := totalBeforePad + tailSize

	buf := make([]byte, totalSize)

	writeTracksHeader(buf, ctx, rotComp, withMetadata)
	writeTransformTracksHeader(buf[l.ttOffset:], ctx, l)
	writeSegmentStarts(buf[l.ttOffset:], ctx, l)
	writeSegmentHeaders(buf[l.ttOffset:], ctx, l, animated, rotComp)
	writeSubTrackTypes(buf[int(l.ttOffset)+int(l.subTrackTypesOff):], ctx)
	writeConstantPool(buf[int(l.ttOffset)+int(l.constantPoolOff):], ctx, rotComp)
	writeClipRangePool(buf[int(l.ttOffset)+int(l.clipRangePoolOff):], ctx, animated, rotComp)

	for i, seg := range ctx.Segments {
		off := int(l.ttOffset) + int(l.segmentDataOffsets[i])
		writeSegmentData(buf[off:], ctx, seg, animated, rotComp)
	}

	if withMetadata {
		copy(buf[totalBeforePad:], trailer)
	}

	rawHeader := section.RawBufferHeader{
		Size: uint32(totalSize),
		Hash: hash.FNV1a32(buf[section.RawBufferHeaderSize:]),
	}
	copy(buf[0:section.RawBufferHeaderSize], rawHeader.Bytes())

	return buf, nil
}

// animatedSet records, per stream, the bone indices whose sub-track
// survived collapsing as animated, in ascending order. This set (and its
// order) is identical across every segment, since SubTrackKind is decided
// clip-wide by CollapseConstants.
type animatedSet struct {
	rotation, translation, scale []int
}

func classify(ctx *clip.Context) animatedSet {
	var a animatedSet
	for i, bs := range ctx.Bones {
		if bs.Rotation.IsAnimated() {
			a.rotation = append(a.rotation, i)
		}
		if bs.Translation.IsAnimated() {
			a.translation = append(a.translation, i)
		}
		if bs.Scale.IsAnimated() {
			a.scale = append(a.scale, i)
		}
	}

	return a
}

func rotationFormatComponents(f format.RotationFormat) int {
	if f.DropsW() {
		return 3
	}

	return 4
}

func writeTracksHeader(buf []byte, ctx *clip.Context, rotComp int, withMetadata bool) {
	var flags uint8
	if ctx.HasScale {
		flags |= section.FlagHasScale
	}
	if ctx.Tracks.DefaultScale() == (transform.Vec3{}) {
		flags |= section.FlagDefaultScaleZero
	}
	if ctx.Settings.RotationFormat.DropsW() {
		flags |= section.FlagRotationDropW
	}
	if ctx.Settings.EnableDatabaseSupport {
		flags |= section.FlagHasDatabase
	}
	if ctx.Tracks.AdditiveBase {
		flags |= section.FlagAdditiveBase
	}
	if withMetadata {
		flags |= section.FlagHasMetadata
	}

	h := section.TracksHeader{
		Tag:               section.MagicTag,
		Version:           section.FormatVersion,
		Algorithm:         0,
		TrackType:         section.TrackTypeTransform,
		TrackCount:        uint32(len(ctx.Bones)),
		SampleCount:       uint32(ctx.Tracks.SampleCount()),
		SampleRate:        ctx.Tracks.SampleRate,
		RotationFormat:    uint8(ctx.Settings.RotationFormat),
		TranslationFormat: uint8(ctx.Settings.TranslationFormat),
		ScaleFormat:       uint8(ctx.Settings.ScaleFormat),
		Flags:             flags,
	}

	copy(buf[section.RawBufferHeaderSize:section.RawBufferHeaderSize+section.TracksHeaderSize], h.Bytes())
}

func writeTransformTracksHeader(buf []byte, ctx *clip.Context, l layout) {
	h := section.TransformTracksHeader{
		SegmentCount:      uint32(len(ctx.Segments)),
		RotationCount:     uint32(len(ctx.Bones)),
		TranslationCount:  uint32(len(ctx.Bones)),
		ScaleCount:        uint32(len(ctx.Bones)),
		SegmentStartsOff:  l.segmentStartsOff,
		SegmentHeadersOff: l.segmentHeadersOff,
		SubTrackTypesOff:  l.subTrackTypesOff,
		ConstantPoolOff:   l.constantPoolOff,
		ClipRangePoolOff:  l.clipRangePoolOff,
	}

	copy(buf[0:section.TransformTracksHeaderSize], h.Bytes())
}

func writeSegmentStarts(buf []byte, ctx *clip.Context, l layout) {
	if len(ctx.Segments) <= 1 {
		return
	}

	off := int(l.segmentStartsOff)
	for _, seg := range ctx.Segments {
		putU32(buf[off:], uint32(seg.Start))
		off += 4
	}
	putU32(buf[off:], section.SegmentStartSentinel)
}

func writeSegmentHeaders(buf []byte, ctx *clip.Context, l layout, a animatedSet, rotComp int) {
	for i, seg := range ctx.Segments {
		bitCount := segmentAnimatedBitCount(ctx, seg, a, rotComp)
		rangeOff := l.segmentDataOffsets[i] + uint32(perTrackFormatBytes(a))

		h := section.SegmentHeader{
			DataOffset:       l.segmentDataOffsets[i],
			AnimatedBitCount: uint32(bitCount),
			SampleCount:      uint16(seg.Count),
			RangeDataOffset:  rangeOff,
		}

		off := int(l.segmentHeadersOff) + i*section.SegmentHeaderSize
		copy(buf[off:off+section.SegmentHeaderSize], h.Bytes())
	}
}

func perTrackFormatBytes(a animatedSet) int {
	return len(a.rotation) + len(a.translation) + len(a.scale)
}

func segmentAnimatedBitCount(ctx *clip.Context, seg *clip.Segment, a animatedSet, rotComp int) int {
	total := 0
	for _, bi := range a.rotation {
		total += bitsForSubTrack(seg.Bones[bi].Rotation, rotComp)
	}
	for _, bi := range a.translation {
		total += bitsForSubTrack(seg.Bones[bi].Translation, 3)
	}
	for _, bi := range a.scale {
		total += bitsForSubTrack(seg.Bones[bi].Scale, 3)
	}

	return total
}

func bitsForSubTrack(sst *clip.SegmentSubTrack, components int) int {
	return section.NumBitsAtRate(sst.BitRate) * components
}

func writeSubTrackTypes(buf []byte, ctx *clip.Context) {
	kinds := make([]section.SubTrackKind, 0, len(ctx.Bones)*3)
	for _, bs := range ctx.Bones {
		kinds = append(kinds, bs.Rotation.Kind)
	}
	for _, bs := range ctx.Bones {
		kinds = append(kinds, bs.Translation.Kind)
	}
	for _, bs := range ctx.Bones {
		kinds = append(kinds, bs.Scale.Kind)
	}

	words := section.PackSubTrackKinds(kinds)
	for i, w := range words {
		putU32(buf[i*4:], w)
	}
}

func constantPoolSize(ctx *clip.Context, rotComp int) int {
	n := 0
	for _, bs := range ctx.Bones {
		if bs.Rotation.Kind == section.SubTrackConstant {
			n += rotComp * 4
		}
		if bs.Translation.Kind == section.SubTrackConstant {
			n += 3 * 4
		}
		if bs.Scale.Kind == section.SubTrackConstant {
			n += 3 * 4
		}
	}

	return n
}

func writeConstantPool(buf []byte, ctx *clip.Context, rotComp int) {
	off := 0
	for _, bs := range ctx.Bones {
		if bs.Rotation.Kind == section.SubTrackConstant {
			off += putFloats(buf[off:], bs.Rotation.ConstantValue[:rotComp])
		}
	}
	for _, bs := range ctx.Bones {
		if bs.Translation.Kind == section.SubTrackConstant {
			off += putFloats(buf[off:], bs.Translation.ConstantValue)
		}
	}
	for _, bs := range ctx.Bones {
		if bs.Scale.Kind == section.SubTrackConstant {
			off += putFloats(buf[off:], bs.Scale.ConstantValue)
		}
	}
}

func clipRangePoolSize(a animatedSet, rotComp int) int {
	return len(a.rotation)*rotComp*8 + len(a.translation)*3*8 + len(a.scale)*3*8
}

func writeClipRangePool(buf []byte, ctx *clip.Context, a animatedSet, rotComp int) {
	off := 0
	for _, bi := range a.rotation {
		off += putClipRange(buf[off:], ctx.Bones[bi].Rotation.ClipRange[:rotComp])
	}
	for _, bi := range a.translation {
		off += putClipRange(buf[off:], ctx.Bones[bi].Translation.ClipRange)
	}
	for _, bi := range a.scale {
		off += putClipRange(buf[off:], ctx.Bones[bi].Scale.ClipRange)
	}
}

func segmentDataSize(ctx *clip.Context, seg *clip.Segment, a animatedSet, rotComp int) int {
	formatBytes := perTrackFormatBytes(a)
	rangeBytes := (len(a.rotation)*rotComp + len(a.translation)*3 + len(a.scale)*3) * 2
	bitCount := segmentAnimatedBitCount(ctx, seg, a, rotComp)
	streamBytes := (bitCount*seg.Count + 7) / 8

	return formatBytes + rangeBytes + streamBytes
}

func writeSegmentData(buf []byte, ctx *clip.Context, seg *clip.Segment, a animatedSet, rotComp int) {
	off := 0

	// Per-track format record: one bit-rate byte per animated sub-track,
	// rotation-major then translation then scale.
	for _, bi := range a.rotation {
		buf[off] = byte(seg.Bones[bi].Rotation.BitRate)
		off++
	}
	for _, bi := range a.translation {
		buf[off] = byte(seg.Bones[bi].Translation.BitRate)
		off++
	}
	for _, bi := range a.scale {
		buf[off] = byte(seg.Bones[bi].Scale.BitRate)
		off++
	}

	// Segment-range record: 8-bit (min, extent) per written component.
	for _, bi := range a.rotation {
		off += putQuantizedRange(buf[off:], seg.Bones[bi].Rotation.Range[:rotComp])
	}
	for _, bi := range a.translation {
		off += putQuantizedRange(buf[off:], seg.Bones[bi].Translation.Range)
	}
	for _, bi := range a.scale {
		off += putQuantizedRange(buf[off:], seg.Bones[bi].Scale.Range)
	}

	// Packed animated bitstream: keyframe-major, sub-track-major within a
	// keyframe (spec.md §4.8).
	w := bitpack.NewWriter()
	defer w.Release()

	for s := 0; s < seg.Count; s++ {
		for _, bi := range a.rotation {
			writeComponents(w, ctx.Bones[bi].Rotation, seg.Bones[bi].Rotation, rotComp, s)
		}
		for _, bi := range a.translation {
			writeComponents(w, ctx.Bones[bi].Translation, seg.Bones[bi].Translation, 3, s)
		}
		for _, bi := range a.scale {
			writeComponents(w, ctx.Bones[bi].Scale, seg.Bones[bi].Scale, 3, s)
		}
	}

	copy(buf[off:], w.Bytes())
}

// writeComponents packs one sub-track's components for one keyframe at its
// chosen bit rate. The constant-within-segment rate writes nothing (the
// value is reconstructed purely from the segment range at decode time); the
// raw rate writes the untouched reference sample as 32-bit floats.
func writeComponents(w *bitpack.Writer, parent *clip.SubTrack, sst *clip.SegmentSubTrack, numComponents, localIndex int) {
	if sst.BitRate.IsConstant() {
		return
	}

	if sst.BitRate.IsRaw() {
		for c := 0; c < numComponents; c++ {
			w.WriteBits(floatBits(parent.Reference[sst.GlobalIndex(localIndex)][c]), 32)
		}

		return
	}

	bits := section.NumBitsAtRate(sst.BitRate)
	levels := float32((uint32(1) << uint(bits)) - 1)

	for c := 0; c < numComponents; c++ {
		v := sst.Samples[localIndex][c]
		q := uint32(v*levels + 0.5)
		w.WriteBits(q, bits)
	}
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putFloats(b []byte, values []float32) int {
	off := 0
	for _, v := range values {
		putU32(b[off:], floatBits(v))
		off += 4
	}

	return off
}

func putClipRange(b []byte, ranges []section.ClipRange) int {
	off := 0
	for _, r := range ranges {
		putU32(b[off:], floatBits(r.Min))
		putU32(b[off+4:], floatBits(r.Extent))
		off += 8
	}

	return off
}

func putQuantizedRange(b []byte, ranges []section.ClipRange) int {
	off := 0
	for _, r := range ranges {
		b[off] = section.EncodeRangeComponent(r.Min)
		b[off+1] = section.EncodeRangeComponent(r.Extent)
		off += 2
	}

	return off
}

func floatBits(f float32) uint32 {
	return math.Float32bits(f)
}
