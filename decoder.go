package acl

import (
	"fmt"
	"math"
	"sort"

	"github.com/animblob/animblob/bitpack"
	"github.com/animblob/animblob/errs"
	"github.com/animblob/animblob/format"
	"github.com/animblob/animblob/internal/hash"
	"github.com/animblob/animblob/section"
	"github.com/animblob/animblob/transform"
)

// CompressedTracks is an opaque, parsed view over an immutable blob
// (spec.md §6 make_compressed_tracks). It borrows the input slice; the
// caller must keep it alive for as long as any CompressedTracks or
// DecompressionContext built from it is in use.
type CompressedTracks struct {
	data []byte

	raw    section.RawBufferHeader
	tracks section.TracksHeader
	tt     section.TransformTracksHeader
	ttOff  int

	segmentStarts []uint32 // absolute sample index each segment starts at

	rotComp int // 3 (drop-W) or 4 (full), resolved once from tracks.RotationFormat

	streams [3]streamLayout // indexed by section.SubTrackStream
}

// streamLayout resolves, once per blob, the per-bone classification (§4.4)
// and pool ordinals a single sub-track stream (rotation, translation, or
// scale) needs at decode time: which bones are default/constant/animated,
// and each bone's position within its kind's pool.
type streamLayout struct {
	components      int
	kinds           []section.SubTrackKind
	constantOrdinal []int // -1 unless Kind == SubTrackConstant
	animatedOrdinal []int // -1 unless Kind is one of the animated kinds
	numConstant     int
	numAnimated     int
}

func newStreamLayout(kinds []section.SubTrackKind, components int) streamLayout {
	sl := streamLayout{
		components:      components,
		kinds:           kinds,
		constantOrdinal: make([]int, len(kinds)),
		animatedOrdinal: make([]int, len(kinds)),
	}

	for i, k := range kinds {
		sl.constantOrdinal[i] = -1
		sl.animatedOrdinal[i] = -1

		switch k {
		case section.SubTrackConstant:
			sl.constantOrdinal[i] = sl.numConstant
			sl.numConstant++
		case section.SubTrackAnimatedVariable, section.SubTrackAnimatedRaw:
			sl.animatedOrdinal[i] = sl.numAnimated
			sl.numAnimated++
		}
	}

	return sl
}

// MakeCompressedTracks parses the fixed headers of a blob and resolves the
// per-bone sub-track classification, mirroring spec.md §6's
// make_compressed_tracks: a cheap structural parse, not a full validation.
func MakeCompressedTracks(data []byte) (*CompressedTracks, error) {
	raw, err := section.ParseRawBufferHeader(data)
	if err != nil {
		return nil, err
	}

	if int(raw.Size) > len(data) {
		return nil, errs.ErrInvalidHeaderSize
	}

	tracksOff := section.RawBufferHeaderSize
	tracksHeader, err := section.ParseTracksHeader(data[tracksOff:])
	if err != nil {
		return nil, err
	}

	ttOff := tracksOff + section.TracksHeaderSize
	tt, err := section.ParseTransformTracksHeader(data[ttOff:])
	if err != nil {
		return nil, err
	}

	rotComp := 4
	if format.RotationFormat(tracksHeader.RotationFormat).DropsW() {
		rotComp = 3
	}

	ct := &CompressedTracks{data: data, raw: raw, tracks: tracksHeader, tt: tt, ttOff: ttOff, rotComp: rotComp}
	ct.segmentStarts = ct.readSegmentStarts()

	numBones := int(tracksHeader.TrackCount)
	base := ttOff + int(tt.SubTrackTypesOff)
	words := make([]uint32, section.SubTrackTypeWordsSize(numBones, numBones, numBones)/4)
	for i := range words {
		words[i] = getU32(data[base+i*4:])
	}

	rotKinds := make([]section.SubTrackKind, numBones)
	transKinds := make([]section.SubTrackKind, numBones)
	sclKinds := make([]section.SubTrackKind, numBones)
	for i := 0; i < numBones; i++ {
		rotKinds[i] = section.UnpackSubTrackKind(words, i)
		transKinds[i] = section.UnpackSubTrackKind(words, numBones+i)
		sclKinds[i] = section.UnpackSubTrackKind(words, 2*numBones+i)
	}

	ct.streams[section.StreamRotation] = newStreamLayout(rotKinds, rotComp)
	ct.streams[section.StreamTranslation] = newStreamLayout(transKinds, 3)
	ct.streams[section.StreamScale] = newStreamLayout(sclKinds, 3)

	return ct, nil
}

// IsValid probes the blob for format violations: tag, version, and (if
// checkHash) the FNV-1a32 integrity hash, per spec.md §4.12/§8.
func (ct *CompressedTracks) IsValid(checkHash bool) error {
	if ct.tracks.Tag != section.MagicTag {
		return errs.ErrInvalidMagic
	}

	if ct.tracks.Version > section.FormatVersion {
		return errs.ErrUnsupportedVersion
	}

	if !checkHash {
		return nil
	}

	got := hash.FNV1a32(ct.data[section.RawBufferHeaderSize:ct.raw.Size])
	if got != ct.raw.Hash {
		return errs.ErrHashMismatch
	}

	return nil
}

func (ct *CompressedTracks) readSegmentStarts() []uint32 {
	n := int(ct.tt.SegmentCount)
	if n <= 1 {
		return []uint32{0}
	}

	starts := make([]uint32, n)
	base := ct.ttOff + int(ct.tt.SegmentStartsOff)
	for i := 0; i < n; i++ {
		starts[i] = getU32(ct.data[base+i*4:])
	}

	return starts
}

func (ct *CompressedTracks) segmentHeader(i int) section.SegmentHeader {
	off := ct.ttOff + int(ct.tt.SegmentHeadersOff) + i*section.SegmentHeaderSize
	h, _ := section.ParseSegmentHeader(ct.data[off:])

	return h
}

// Duration returns the clip's total duration in seconds.
func (ct *CompressedTracks) Duration() float32 {
	if ct.tracks.SampleRate == 0 {
		return 0
	}

	return float32(ct.tracks.SampleCount-1) / ct.tracks.SampleRate
}

// TrackCount returns the number of transform tracks in the blob.
func (ct *CompressedTracks) TrackCount() int { return int(ct.tracks.TrackCount) }

// SampleCount returns the clip's sample count.
func (ct *CompressedTracks) SampleCount() int { return int(ct.tracks.SampleCount) }

// SegmentCount returns the number of segments the clip was partitioned
// into (spec.md §4.6).
func (ct *CompressedTracks) SegmentCount() int { return int(ct.tt.SegmentCount) }

// Sink receives decoded sub-track values, mirroring spec.md §9's "sink
// callback vs returned arrays" design note: the caller chooses the output
// layout (contiguous pose, per-bone decomposition, engine SoA) without the
// decoder allocating. Embed NoOpSink to implement only the methods a
// particular caller cares about.
type Sink interface {
	WriteRotation(trackIndex int, q transform.Quat)
	WriteTranslation(trackIndex int, v transform.Vec3)
	WriteScale(trackIndex int, v transform.Vec3)
}

// NoOpSink is embeddable by callers that only want a subset of sub-tracks.
type NoOpSink struct{}

func (NoOpSink) WriteRotation(int, transform.Quat)    {}
func (NoOpSink) WriteTranslation(int, transform.Vec3) {}
func (NoOpSink) WriteScale(int, transform.Vec3)       {}

// DecompressionContext is the decode-time state machine of spec.md §4.9:
// Initialized(blob) -> Seeked(time) -> Seeked(time)* -> Destroyed.
// Decompress* operations require a prior Seek call. It holds no allocation
// beyond this struct; every read borrows the underlying blob directly.
type DecompressionContext struct {
	ct *CompressedTracks

	seeked  bool
	sampleA int
	sampleB int
	segA    int
	segB    int
	alpha   float32
}

// NewDecompressionContext creates a context over ct, analogous to
// Initialized(blob).
func NewDecompressionContext(ct *CompressedTracks) *DecompressionContext {
	return &DecompressionContext{ct: ct}
}

// Seek resolves a sample time into the two bracketing samples and an
// interpolation alpha, applying the given rounding policy (spec.md §4.9).
// Must be called before any Decompress* call.
func (dc *DecompressionContext) Seek(t float32, rounding format.Rounding) {
	ct := dc.ct
	rate := ct.tracks.SampleRate
	lastSample := int(ct.tracks.SampleCount) - 1

	f := t * rate
	if f < 0 {
		f = 0
	}
	if maxF := float32(lastSample); f > maxF {
		f = maxF
	}

	sampleA := int(math.Floor(float64(f)))
	alpha := f - float32(sampleA)

	switch rounding {
	case format.RoundFloor:
		alpha = 0
	case format.RoundCeil:
		alpha = 1
	case format.RoundNearest:
		if alpha < 0.5 {
			alpha = 0
		} else {
			alpha = 1
		}
	}

	sampleB := sampleA + 1
	if sampleB > lastSample {
		sampleB = lastSample
	}

	dc.sampleA = sampleA
	dc.sampleB = sampleB
	dc.alpha = alpha
	dc.segA = dc.segmentForSample(sampleA)
	dc.segB = dc.segmentForSample(sampleB)
	dc.seeked = true
}

// segmentForSample returns the index of the segment containing the given
// absolute sample index, via binary search over the segment-start table.
func (dc *DecompressionContext) segmentForSample(sample int) int {
	starts := dc.ct.segmentStarts
	i := sort.Search(len(starts), func(i int) bool { return int(starts[i]) > sample })

	return i - 1
}

// DecompressTracks writes every bone's rotation, translation, and scale at
// the seeked time into sink.
func (dc *DecompressionContext) DecompressTracks(sink Sink) error {
	if !dc.seeked {
		return errs.ErrNotSeeked
	}

	for i := 0; i < dc.ct.TrackCount(); i++ {
		dc.decompressTrack(i, sink)
	}

	return nil
}

// DecompressTrack writes a single bone's sub-tracks at the seeked time.
func (dc *DecompressionContext) DecompressTrack(trackIndex int, sink Sink) error {
	if !dc.seeked {
		return errs.ErrNotSeeked
	}

	if trackIndex < 0 || trackIndex >= dc.ct.TrackCount() {
		return fmt.Errorf("%w: %d", errs.ErrTrackIndexOutOfRange, trackIndex)
	}

	dc.decompressTrack(trackIndex, sink)

	return nil
}

func (dc *DecompressionContext) decompressTrack(trackIndex int, sink Sink) {
	ct := dc.ct

	rotA := dc.sampleComponents(section.StreamRotation, trackIndex, dc.segA, dc.sampleA)
	transA := dc.sampleComponents(section.StreamTranslation, trackIndex, dc.segA, dc.sampleA)
	sclA := dc.sampleComponents(section.StreamScale, trackIndex, dc.segA, dc.sampleA)

	qA := quatFromRaw(rotA, ct.rotComp)

	if dc.alpha == 0 {
		sink.WriteRotation(trackIndex, qA)
		sink.WriteTranslation(trackIndex, vec3FromRaw(transA))
		sink.WriteScale(trackIndex, vec3FromRaw(sclA))

		return
	}

	rotB := dc.sampleComponents(section.StreamRotation, trackIndex, dc.segB, dc.sampleB)
	transB := dc.sampleComponents(section.StreamTranslation, trackIndex, dc.segB, dc.sampleB)
	sclB := dc.sampleComponents(section.StreamScale, trackIndex, dc.segB, dc.sampleB)

	qB := quatFromRaw(rotB, ct.rotComp)

	sink.WriteRotation(trackIndex, qA.NLerp(qB, dc.alpha))
	sink.WriteTranslation(trackIndex, vec3FromRaw(transA).Lerp(vec3FromRaw(transB), dc.alpha))
	sink.WriteScale(trackIndex, vec3FromRaw(sclA).Lerp(vec3FromRaw(sclB), dc.alpha))
}

func quatFromRaw(c []float32, rotComp int) transform.Quat {
	q := transform.Quat{X: c[0], Y: c[1], Z: c[2]}
	if rotComp == 4 {
		q.W = c[3]
	} else {
		q.W = transform.DropW(c[0], c[1], c[2])
	}

	return q.Normalized()
}

func vec3FromRaw(c []float32) transform.Vec3 {
	return transform.Vec3{X: c[0], Y: c[1], Z: c[2]}
}

// sampleComponents reconstructs one sub-track's raw component values for one
// bone at one absolute sample index, applying exactly the same default /
// constant / animated reconstruction formula clip.ReconstructComponents uses
// at compress time (spec.md §4.9), but reading straight out of the blob
// instead of an in-memory segment.
func (dc *DecompressionContext) sampleComponents(stream section.SubTrackStream, trackIndex, segIndex, sampleIndex int) []float32 {
	ct := dc.ct
	sl := &ct.streams[stream]
	numComponents := sl.components

	switch sl.kinds[trackIndex] {
	case section.SubTrackDefault:
		return ct.defaultValue(stream, numComponents)
	case section.SubTrackConstant:
		return ct.constantValue(stream, sl, trackIndex, numComponents)
	}

	return ct.animatedValue(stream, sl, trackIndex, numComponents, segIndex, sampleIndex)
}

func (ct *CompressedTracks) defaultValue(stream section.SubTrackStream, numComponents int) []float32 {
	switch stream {
	case section.StreamRotation:
		v := make([]float32, numComponents)
		if numComponents == 4 {
			v[3] = 1
		}

		return v
	case section.StreamTranslation:
		return make([]float32, 3)
	default:
		v := make([]float32, 3)
		if ct.tracks.Flags&section.FlagDefaultScaleZero == 0 {
			v[0], v[1], v[2] = 1, 1, 1
		}

		return v
	}
}

func (ct *CompressedTracks) constantValue(stream section.SubTrackStream, sl *streamLayout, trackIndex, numComponents int) []float32 {
	ordinal := sl.constantOrdinal[trackIndex]
	groupBase := ct.constantPoolGroupBase(stream)
	off := ct.ttOff + int(ct.tt.ConstantPoolOff) + groupBase + ordinal*numComponents*4

	out := make([]float32, numComponents)
	for c := 0; c < numComponents; c++ {
		out[c] = getF32(ct.data[off+c*4:])
	}

	return out
}

func (ct *CompressedTracks) constantPoolGroupBase(stream section.SubTrackStream) int {
	rot := &ct.streams[section.StreamRotation]
	trans := &ct.streams[section.StreamTranslation]

	switch stream {
	case section.StreamRotation:
		return 0
	case section.StreamTranslation:
		return rot.numConstant * rot.components * 4
	default:
		return rot.numConstant*rot.components*4 + trans.numConstant*trans.components*4
	}
}

func (ct *CompressedTracks) clipRangePoolGroupBase(stream section.SubTrackStream) int {
	rot := &ct.streams[section.StreamRotation]
	trans := &ct.streams[section.StreamTranslation]

	switch stream {
	case section.StreamRotation:
		return 0
	case section.StreamTranslation:
		return rot.numAnimated * rot.components * 8
	default:
		return rot.numAnimated*rot.components*8 + trans.numAnimated*trans.components*8
	}
}

func (ct *CompressedTracks) clipRange(stream section.SubTrackStream, ordinal, component int) section.ClipRange {
	sl := &ct.streams[stream]
	off := ct.ttOff + int(ct.tt.ClipRangePoolOff) + ct.clipRangePoolGroupBase(stream) + (ordinal*sl.components+component)*8

	return section.ClipRange{Min: getF32(ct.data[off:]), Extent: getF32(ct.data[off+4:])}
}

// segmentAnimatedLayout resolves the byte/bit offsets a single segment's
// animated region needs: where each stream's bit-rate bytes and range
// records start, and the running bit offset each animated bone's packed
// samples start at within one keyframe's block.
type segmentAnimatedLayout struct {
	dataOff            int // absolute byte offset of the bit-rate byte table
	rangeOff           int // absolute byte offset of the quantized-range table
	bitstreamOff       int // absolute byte offset the packed bitstream starts at
	totalBitsPerSample int
	rates              [3][]section.BitRate // per stream, per animated ordinal
	bitOffsetInSample  [3][]int             // per stream, per animated ordinal: bits before it within one sample's block
}

func (ct *CompressedTracks) buildSegmentLayout(segIndex int) segmentAnimatedLayout {
	h := ct.segmentHeader(segIndex)

	l := segmentAnimatedLayout{
		dataOff:  ct.ttOff + int(h.DataOffset),
		rangeOff: ct.ttOff + int(h.RangeDataOffset),
	}

	cursor := l.dataOff
	var groupBitOffset [3]int
	runningBits := 0

	for stream := 0; stream < 3; stream++ {
		sl := &ct.streams[stream]
		rates := make([]section.BitRate, sl.numAnimated)
		offsets := make([]int, sl.numAnimated)

		groupBitOffset[stream] = runningBits

		for ord := 0; ord < sl.numAnimated; ord++ {
			rate := section.BitRate(ct.data[cursor])
			cursor++

			rates[ord] = rate
			offsets[ord] = runningBits - groupBitOffset[stream]

			bits := 0
			switch {
			case rate.IsConstant():
				bits = 0
			case rate.IsRaw():
				bits = 32 * sl.components
			default:
				bits = section.NumBitsAtRate(rate) * sl.components
			}

			runningBits += bits
		}

		l.rates[stream] = rates
		l.bitOffsetInSample[stream] = offsets
	}

	l.totalBitsPerSample = runningBits

	rangeBytes := 0
	for stream := 0; stream < 3; stream++ {
		rangeBytes += len(l.rates[stream]) * ct.streams[stream].components * 2
	}

	// l.rangeOff was seeded from the segment header's own RangeDataOffset
	// field above; that field is the wire format's authoritative pointer to
	// the range table (spec.md §3 item 5), so it is used as-is rather than
	// re-derived from the bit-rate byte cursor.
	l.bitstreamOff = l.rangeOff + rangeBytes

	// groupBitOffset is relative within a sample block; fold it into each
	// stream's recorded offsets so callers only need one lookup.
	for stream := 0; stream < 3; stream++ {
		for i := range l.bitOffsetInSample[stream] {
			l.bitOffsetInSample[stream][i] += groupBitOffset[stream]
		}
	}

	return l
}

func (ct *CompressedTracks) animatedValue(stream section.SubTrackStream, sl *streamLayout, trackIndex, numComponents, segIndex, sampleIndex int) []float32 {
	ordinal := sl.animatedOrdinal[trackIndex]
	layout := ct.buildSegmentLayout(segIndex)
	rate := layout.rates[stream][ordinal]

	localIndex := sampleIndex - int(ct.segmentStarts[segIndex])

	out := make([]float32, numComponents)

	rangeGroupBase := 0
	for s := 0; s < int(stream); s++ {
		rangeGroupBase += len(layout.rates[s]) * ct.streams[s].components * 2
	}
	rangeBase := layout.rangeOff + rangeGroupBase + ordinal*numComponents*2

	if rate.IsRaw() {
		bitOff := layout.bitstreamOff*8 + localIndex*layout.totalBitsPerSample + layout.bitOffsetInSample[stream][ordinal]
		r := bitpack.NewReader(ct.data[layout.bitstreamOff:])

		for c := 0; c < numComponents; c++ {
			bits := r.ReadBits(bitOff-layout.bitstreamOff*8+c*32, 32)
			raw := math.Float32frombits(bits)
			out[c] = raw
		}

		return out
	}

	for c := 0; c < numComponents; c++ {
		clipR := ct.clipRange(stream, ordinal, c)

		segMin := section.DecodeRangeComponent(ct.data[rangeBase+c*2])
		segExt := section.DecodeRangeComponent(ct.data[rangeBase+c*2+1])
		segMin, segExt = section.QuantizeRoundTrip(segMin, segExt)

		if rate.IsConstant() {
			out[c] = clipR.Denormalize(segMin)

			continue
		}

		bits := section.NumBitsAtRate(rate)
		levels := float32((uint32(1) << uint(bits)) - 1)

		bitOff := layout.bitstreamOff*8 + localIndex*layout.totalBitsPerSample + layout.bitOffsetInSample[stream][ordinal] + c*bits
		r := bitpack.NewReader(ct.data[layout.bitstreamOff:])
		q := r.ReadBits(bitOff-layout.bitstreamOff*8, bits)

		segValue := segMin + (float32(q)/levels)*segExt
		out[c] = clipR.Denormalize(segValue)
	}

	return out
}

func getU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func getF32(b []byte) float32 {
	return math.Float32frombits(getU32(b))
}
