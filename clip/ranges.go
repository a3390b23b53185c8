package clip

import "github.com/animblob/animblob/section"

// rangeOf computes componentwise (min, extent) across samples[lo:hi).
func rangeOf(samples [][]float32, lo, hi, numComponents int) []section.ClipRange {
	ranges := make([]section.ClipRange, numComponents)
	for c := 0; c < numComponents; c++ {
		min := samples[lo][c]
		max := samples[lo][c]
		for s := lo + 1; s < hi; s++ {
			v := samples[s][c]
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		ranges[c] = section.ClipRange{Min: min, Extent: max - min}
	}

	return ranges
}

// ExtractClipRanges computes each sub-track's (min, extent) over the whole
// clip (spec.md §4.3) and freezes a Reference copy of the current
// (reformatted, raw) samples for later use as the error metric's ground
// truth. Transitions StageRaw -> StageRangesExtracted.
func ExtractClipRanges(c *Context) error {
	if err := c.requireStage(StageRaw); err != nil {
		return err
	}

	n := c.Tracks.SampleCount()

	for _, bs := range c.Bones {
		for _, st := range []*SubTrack{bs.Rotation, bs.Translation, bs.Scale} {
			st.ClipRange = rangeOf(st.Samples, 0, n, st.NumComponents)
			st.Reference = cloneSamples(st.Samples)
		}
	}

	c.Stage = StageRangesExtracted

	return nil
}

func cloneSamples(src [][]float32) [][]float32 {
	dst := make([][]float32, len(src))
	for i, row := range src {
		dst[i] = append([]float32(nil), row...)
	}

	return dst
}

// ExtractSegmentRanges recomputes tighter ranges of the already
// clip-normalized samples, scoped to each segment (spec.md §4.3, second
// pass). Only meaningful for animated sub-tracks; constant/default
// sub-tracks carry no per-segment range. Must run after Segment() has
// populated c.Segments from clip-normalized samples, and before
// NormalizeSegment.
func ExtractSegmentRanges(c *Context) error {
	if err := c.requireStage(StageSegmented); err != nil {
		return err
	}

	for _, seg := range c.Segments {
		for _, sb := range seg.Bones {
			for _, sst := range []*SegmentSubTrack{sb.Rotation, sb.Translation, sb.Scale} {
				if sst.Parent.Kind != section.SubTrackAnimatedVariable && sst.Parent.Kind != section.SubTrackAnimatedRaw {
					continue
				}

				sst.Range = rangeOf(sst.Samples, 0, len(sst.Samples), sst.Parent.NumComponents)
			}
		}
	}

	return nil
}
