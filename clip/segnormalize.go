package clip

// NormalizeSegment remaps each segment's animated sub-track samples -
// already in clip-normalized [0,1] form - into the segment's own tighter
// [0,1] range, per spec.md §4.5. Must run after ExtractSegmentRanges.
// Transitions StageSegmented -> StageSegmentNormalized.
func NormalizeSegment(c *Context) error {
	if err := c.requireStage(StageSegmented); err != nil {
		return err
	}

	for _, seg := range c.Segments {
		for _, sb := range seg.Bones {
			for _, sst := range []*SegmentSubTrack{sb.Rotation, sb.Translation, sb.Scale} {
				if !sst.Parent.IsAnimated() {
					continue
				}

				normalizeInPlace(sst.Samples, sst.Range)
			}
		}
	}

	c.Stage = StageSegmentNormalized

	return nil
}
