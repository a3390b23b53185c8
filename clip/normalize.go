package clip

import "github.com/animblob/animblob/section"

// NormalizeClip maps every animated sub-track's samples into [0,1]
// componentwise using the clip range computed by ExtractClipRanges (spec.md
// §4.5). Constant and default sub-tracks are left untouched: their samples
// are never read again except through ConstantValue / the identity value.
// Transitions StageConstantsCollapsed -> StageNormalized.
func NormalizeClip(c *Context) error {
	if err := c.requireStage(StageConstantsCollapsed); err != nil {
		return err
	}

	for _, bs := range c.Bones {
		for _, st := range []*SubTrack{bs.Rotation, bs.Translation, bs.Scale} {
			if !st.IsAnimated() {
				continue
			}

			normalizeInPlace(st.Samples, st.ClipRange)
		}
	}

	c.Stage = StageNormalized

	return nil
}

// normalizeInPlace overwrites samples with their clip-normalized values,
// clamped to [0,1] to absorb rounding (spec.md §4.5).
func normalizeInPlace(samples [][]float32, ranges []section.ClipRange) {
	for _, s := range samples {
		for c, r := range ranges {
			s[c] = r.Normalize(s[c])
		}
	}
}
