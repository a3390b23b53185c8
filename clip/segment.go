package clip

import (
	"github.com/animblob/animblob/errs"
	"github.com/animblob/animblob/section"
)

// SegmentSubTrack is one bone's per-segment view of a sub-track: a copy of
// the clip-normalized samples restricted to the segment's sample range
// (only populated for animated sub-tracks), the tighter segment-local range,
// and the bit rate the quantizer ultimately assigns.
type SegmentSubTrack struct {
	Parent  *SubTrack
	Start   int // first global sample index this segment covers
	Samples [][]float32
	Range   []section.ClipRange
	BitRate section.BitRate
}

// GlobalIndex converts a segment-local sample index into its index in the
// clip's full sample range, e.g. for indexing Parent.Reference.
func (sst *SegmentSubTrack) GlobalIndex(localIndex int) int {
	return sst.Start + localIndex
}

// SegmentBoneStreams groups one bone's three per-segment sub-tracks.
type SegmentBoneStreams struct {
	Rotation, Translation, Scale *SegmentSubTrack
}

// Segment is a contiguous, independently range-normalized slice of the
// clip's samples (spec.md §3 "Segment", §4.6).
type Segment struct {
	Start, Count int
	Bones        []*SegmentBoneStreams
}

func newSegmentSubTrack(parent *SubTrack, start, count int) *SegmentSubTrack {
	sst := &SegmentSubTrack{Parent: parent, Start: start}

	if !parent.IsAnimated() {
		return sst
	}

	sst.Samples = make([][]float32, count)
	for i := 0; i < count; i++ {
		sst.Samples[i] = append([]float32(nil), parent.Samples[start+i]...)
	}

	return sst
}

// Segment partitions the clip's timeline into fixed-count contiguous
// segments following the §4.6 algorithm: ideal count I=16, max M=31, with
// the last segment's remainder absorbed into earlier segments when it would
// otherwise be short enough to redistribute. Transitions
// StageNormalized -> StageSegmented.
func Segment(c *Context) error {
	if err := c.requireStage(StageNormalized); err != nil {
		return err
	}

	n := c.Tracks.SampleCount()
	bounds := planSegments(n)

	if len(bounds) > section.MaxSegmentCount {
		return errs.ErrTooManySegments
	}

	c.Segments = make([]*Segment, len(bounds))

	for i, b := range bounds {
		seg := &Segment{Start: b.start, Count: b.count}
		seg.Bones = make([]*SegmentBoneStreams, len(c.Bones))

		for bi, bs := range c.Bones {
			seg.Bones[bi] = &SegmentBoneStreams{
				Rotation:    newSegmentSubTrack(bs.Rotation, b.start, b.count),
				Translation: newSegmentSubTrack(bs.Translation, b.start, b.count),
				Scale:       newSegmentSubTrack(bs.Scale, b.start, b.count),
			}
		}

		c.Segments[i] = seg
	}

	c.Stage = StageSegmented

	return nil
}

type segmentBounds struct {
	start, count int
}

const (
	idealSegmentSampleCount = section.IdealSegmentSampleCount
	maxSegmentSampleCount   = section.MaxSegmentSampleCount
)

// planSegments implements spec.md §4.6 steps 1-4.
func planSegments(sClip int) []segmentBounds {
	if sClip <= maxSegmentSampleCount {
		return []segmentBounds{{start: 0, count: sClip}}
	}

	k := ceilDiv(sClip, idealSegmentSampleCount)
	r := sClip - (k-1)*idealSegmentSampleCount

	if r < idealSegmentSampleCount && canAbsorb(sClip, k-1) {
		return distributeAcross(sClip, k-1)
	}

	bounds := make([]segmentBounds, k)
	start := 0
	for i := 0; i < k; i++ {
		count := idealSegmentSampleCount
		if i == k-1 {
			count = r
		}
		bounds[i] = segmentBounds{start: start, count: count}
		start += count
	}

	return bounds
}

// canAbsorb reports whether sClip samples can be spread across k-1 segments
// without any segment exceeding the max segment size.
func canAbsorb(sClip, segments int) bool {
	if segments <= 0 {
		return false
	}

	maxNeeded := ceilDiv(sClip, segments)

	return maxNeeded <= maxSegmentSampleCount
}

// distributeAcross spreads sClip samples evenly across `segments` segments,
// front-loading the remainder.
func distributeAcross(sClip, segments int) []segmentBounds {
	base := sClip / segments
	extra := sClip % segments

	bounds := make([]segmentBounds, segments)
	start := 0
	for i := 0; i < segments; i++ {
		count := base
		if i < extra {
			count++
		}
		bounds[i] = segmentBounds{start: start, count: count}
		start += count
	}

	return bounds
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
