package clip

import (
	"math"

	"github.com/animblob/animblob/format"
	"github.com/animblob/animblob/section"
)

// identityRotation, identityTranslation are the 4/3-component identity
// values against which a constant sub-track is checked for default-ness.
var identityRotation = [4]float32{0, 0, 0, 1}
var identityTranslation = [3]float32{0, 0, 0}

// CollapseConstants marks each sub-track default, constant, or (by omission)
// animated, per spec.md §4.4. A sub-track is constant when its clip-wide
// extent is at or below the bone's threshold (falling back to the settings
// default when the bone does not override it); a constant sub-track is
// further flagged default when its representative sample equals the
// sub-track's identity value within tolerance. Transitions
// StageRangesExtracted -> StageConstantsCollapsed.
func CollapseConstants(c *Context) error {
	if err := c.requireStage(StageRangesExtracted); err != nil {
		return err
	}

	defaultScale := c.Tracks.DefaultScale()

	for _, bs := range c.Bones {
		rotThresholdDeg := thresholdOrDefault(bs.Desc.RotationConstantThreshold, c.Settings.RotationConstantThresholdDeg)
		rotThreshold := degToChordThreshold(rotThresholdDeg)

		transThreshold := thresholdOrDefault(bs.Desc.TranslationConstantThreshold, c.Settings.TranslationConstantThreshold)
		scaleThreshold := thresholdOrDefault(bs.Desc.ScaleConstantThreshold, c.Settings.ScaleConstantThreshold)

		rotRaw := c.Settings.RotationFormat != format.RotationFormatDropWVariable
		transRaw := c.Settings.TranslationFormat == format.TranslationFormatFull
		scaleRaw := c.Settings.ScaleFormat == format.ScaleFormatFull

		collapseSubTrack(bs.Rotation, rotThreshold, identityRotation[:], rotRaw)
		collapseSubTrack(bs.Translation, transThreshold, identityTranslation[:], transRaw)
		collapseSubTrack(bs.Scale, scaleThreshold, []float32{defaultScale.X, defaultScale.Y, defaultScale.Z}, scaleRaw)
	}

	c.Stage = StageConstantsCollapsed

	return nil
}

func thresholdOrDefault(override, def float32) float32 {
	if override > 0 {
		return override
	}

	return def
}

// degToChordThreshold converts a small rotation-angle threshold in degrees
// into an equivalent per-component chord-length tolerance on the unit
// quaternion's components, used because range extraction operates in the
// same component space the quaternion is stored in.
func degToChordThreshold(deg float32) float32 {
	rad := float64(deg) * math.Pi / 180
	// Half-angle chord approximation: |Δq| ≈ angle/2 for small angles.
	return float32(rad / 2)
}

// collapseSubTrack marks st as default or constant when its clip-wide range
// falls within threshold; otherwise it remains animated, tagged
// SubTrackAnimatedRaw when the sub-track's on-disk format always stores
// full-precision samples (bypassing the clip/segment range) or
// SubTrackAnimatedVariable when the bit-rate quantizer is responsible for
// choosing its per-segment width.
func collapseSubTrack(st *SubTrack, threshold float32, identity []float32, rawFormat bool) {
	extentBelowThreshold := true
	for _, r := range st.ClipRange {
		if r.Extent > threshold {
			extentBelowThreshold = false

			break
		}
	}

	if !extentBelowThreshold {
		if rawFormat {
			st.Kind = section.SubTrackAnimatedRaw
		} else {
			st.Kind = section.SubTrackAnimatedVariable
		}

		return
	}

	st.Kind = section.SubTrackConstant
	st.ConstantValue = representativeSample(st.Samples, st.NumComponents)

	isDefault := true
	for i, v := range st.ConstantValue {
		if absf32(v-identity[i]) > threshold {
			isDefault = false

			break
		}
	}

	if isDefault {
		st.Kind = section.SubTrackDefault
		st.ConstantValue = nil
	}
}

// representativeSample returns the mean sample, per spec.md §4.4's "mean or
// first" choice; the mean reduces quantization bias versus picking the
// first sample arbitrarily.
func representativeSample(samples [][]float32, numComponents int) []float32 {
	mean := make([]float32, numComponents)
	for _, s := range samples {
		for c := 0; c < numComponents; c++ {
			mean[c] += s[c]
		}
	}

	n := float32(len(samples))
	for c := range mean {
		mean[c] /= n
	}

	return mean
}

