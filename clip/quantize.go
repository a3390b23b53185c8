package clip

import (
	"github.com/animblob/animblob/section"
	"github.com/animblob/animblob/transform"
)

// candidateKey identifies one animated sub-track within one segment, used as
// the unit the search loop raises bit rates on.
type candidateKey struct {
	boneIndex int
	stream    section.SubTrackStream
}

// Quantize runs the per-segment bit-rate search of spec.md §4.7: every
// animated sub-track starts at the ladder's minimum rate; bones are visited
// in hierarchical (root-first) order, and for each bone the rate of the
// sub-track whose increment most reduces object-space error per bit added is
// raised until the bone's precision budget is met (or every sub-track hits
// raw). Level Low/Lowest pass matches the canonical Medium behavior without
// the optional final decrement pass; High/Highest additionally attempt to
// shave a step off every sub-track once precision is met everywhere.
// Transitions StageSegmentNormalized -> StageQuantized.
func Quantize(c *Context) error {
	if err := c.requireStage(StageSegmentNormalized); err != nil {
		return err
	}

	ref := ReferenceSampler(c.Bones)

	for _, seg := range c.Segments {
		quantizeSegment(c, seg, ref)
	}

	c.Stage = StageQuantized

	return nil
}

func quantizeSegment(c *Context, seg *Segment, ref Sampler) {
	// Initialize every animated sub-track to the ladder's minimum non-constant
	// rate (index 1); pinFlatSegmentSubTracksConstant below relaxes the flat
	// ones back down to index 0 before the search ever runs. A sub-track
	// whose on-disk format is a "full" variant never enters the search: it is
	// pinned to the raw sentinel so its samples bypass the clip/segment range
	// entirely, per spec.md §6's per-stream format settings.
	for _, sb := range seg.Bones {
		for _, sst := range []*SegmentSubTrack{sb.Rotation, sb.Translation, sb.Scale} {
			switch sst.Parent.Kind {
			case section.SubTrackAnimatedRaw:
				sst.BitRate = section.BitRateRaw
			case section.SubTrackAnimatedVariable:
				sst.BitRate = 1
			}
		}
	}

	// A sub-track animated clip-wide can still be perfectly flat within one
	// segment: pin it to the constant sentinel (index 0) up front so the
	// search below never raises it off the floor, per §4.7's "constant
	// (index 0): the sub-track is constant within the segment" code. The
	// test is the same 8-bit segment-range precision the writer actually
	// stores: if every component's extent rounds to zero there, every bit
	// rate decodes to the same value regardless of how many bits are spent,
	// so the original compressor emits is_constant_bit_rate for it rather
	// than wasting animated bits.
	pinFlatSegmentSubTracksConstant(seg)

	lossy := quantizedSampler(c.Bones, seg)

	for _, boneIndex := range c.TopoOrder {
		bone := c.Bones[boneIndex]
		precision := bone.Desc.Precision
		shell := bone.Desc.ShellDistance

		worstError := func() float32 {
			var worst float32
			for s := 0; s < seg.Count; s++ {
				e := ObjectSpaceError(c.TopoOrder, c.Bones, ref, lossy, seg.Start+s, boneIndex, shell)
				if e > worst {
					worst = e
				}
			}

			return worst
		}

		sb := seg.Bones[boneIndex]
		candidates := animatedCandidates(boneIndex, sb)
		if len(candidates) == 0 {
			continue
		}

		for {
			currentErr := worstError()
			if currentErr <= precision {
				break
			}

			key, ok := bestIncrement(candidates, sb, currentErr, func(key candidateKey, rate section.BitRate) float32 {
				sst := subTrackFor(sb, key.stream)
				prev := sst.BitRate
				sst.BitRate = rate
				e := worstError()
				sst.BitRate = prev

				return e
			})

			if !ok {
				c.addWarning(boneIndex, "segment starting at %d could not meet precision %.6f at raw (worst error %.6f)", seg.Start, precision, currentErr)

				break
			}

			sst := subTrackFor(sb, key.stream)
			sst.BitRate++
		}

		if c.Settings.Level.AttemptsDecrementPass() {
			decrementPass(candidates, sb, precision, worstError)
		}
	}
}

// pinFlatSegmentSubTracksConstant marks every animated-variable sub-track of
// seg whose segment range is flat at 8-bit precision (the precision it is
// actually stored at, per spec.md §3 item 9) with the constant bit rate, so
// the search loop never spends animated bits on it.
func pinFlatSegmentSubTracksConstant(seg *Segment) {
	for _, sb := range seg.Bones {
		for _, sst := range []*SegmentSubTrack{sb.Rotation, sb.Translation, sb.Scale} {
			if sst.Parent.Kind != section.SubTrackAnimatedVariable {
				continue
			}

			if segmentRangeIsFlat(sst.Range) {
				sst.BitRate = section.BitRateConstant
			}
		}
	}
}

// segmentRangeIsFlat reports whether every component's extent quantizes to
// zero at the 8-bit precision the segment range record is written at.
func segmentRangeIsFlat(r []section.ClipRange) bool {
	for _, c := range r {
		if section.EncodeRangeComponent(c.Extent) != 0 {
			return false
		}
	}

	return true
}

// animatedCandidates lists the sub-tracks of one bone eligible for rate
// increases, in the tie-break order §4.7 step 2b specifies: rotation before
// translation before scale. A sub-track pinned to SubTrackAnimatedRaw (a
// "full" format) never participates in the search: its bit rate is fixed at
// the raw sentinel and must not be raised or, in the decrement pass,
// lowered. A sub-track already pinned to the constant sentinel (flat within
// this segment, see pinFlatSegmentSubTracksConstant) is likewise excluded:
// raising it off zero would spend bits reproducing a value the decoder
// already reconstructs exactly from the segment range's min.
func animatedCandidates(boneIndex int, sb *SegmentBoneStreams) []candidateKey {
	var out []candidateKey
	if sb.Rotation.Parent.Kind == section.SubTrackAnimatedVariable && !sb.Rotation.BitRate.IsConstant() {
		out = append(out, candidateKey{boneIndex, section.StreamRotation})
	}
	if sb.Translation.Parent.Kind == section.SubTrackAnimatedVariable && !sb.Translation.BitRate.IsConstant() {
		out = append(out, candidateKey{boneIndex, section.StreamTranslation})
	}
	if sb.Scale.Parent.Kind == section.SubTrackAnimatedVariable && !sb.Scale.BitRate.IsConstant() {
		out = append(out, candidateKey{boneIndex, section.StreamScale})
	}

	return out
}

func subTrackFor(sb *SegmentBoneStreams, stream section.SubTrackStream) *SegmentSubTrack {
	switch stream {
	case section.StreamRotation:
		return sb.Rotation
	case section.StreamTranslation:
		return sb.Translation
	default:
		return sb.Scale
	}
}

// bestIncrement finds the candidate whose one-step rate increase reduces
// error the most per bit added, per §4.7 step 2b. Ties are broken by the
// candidate order already encoded in `candidates` (rotation < translation <
// scale, low bone index first - the caller iterates bones in topo order so
// bone index ties never arise within one call).
func bestIncrement(candidates []candidateKey, sb *SegmentBoneStreams, currentErr float32, tryRate func(candidateKey, section.BitRate) float32) (candidateKey, bool) {
	var (
		best      candidateKey
		bestScore float32 = -1
		found     bool
	)

	for _, key := range candidates {
		sst := subTrackFor(sb, key.stream)
		if sst.BitRate.IsRaw() {
			continue
		}

		nextRate := sst.BitRate + 1
		bitsAdded := section.NumBitsAtRate(nextRate) - section.NumBitsAtRate(sst.BitRate)
		if bitsAdded <= 0 {
			continue
		}

		newErr := tryRate(key, nextRate)
		reduction := currentErr - newErr
		score := reduction / float32(bitsAdded)

		if score > bestScore {
			bestScore = score
			best = key
			found = true
		}
	}

	return best, found
}

// decrementPass attempts to shave one bit-rate step off every animated
// sub-track of a bone, accepting the decrement only if the segment's worst
// error stays within budget, per §4.7 step 3 (high/highest levels only).
func decrementPass(candidates []candidateKey, sb *SegmentBoneStreams, precision float32, worstError func() float32) {
	for _, key := range candidates {
		sst := subTrackFor(sb, key.stream)
		if sst.BitRate <= 1 {
			continue
		}

		prev := sst.BitRate
		sst.BitRate--

		if worstError() > precision {
			sst.BitRate = prev
		}
	}
}

// quantizedSampler returns a Sampler that reconstructs a bone's local
// transform at a sample index using each animated sub-track's current
// candidate bit rate, simulating exactly the math the decoder performs
// (spec.md §4.9) so the search converges on a configuration the real
// decoder will also satisfy.
func quantizedSampler(bones []*BoneStreams, seg *Segment) Sampler {
	return func(boneIndex, sampleIndex int) transform.QVV {
		bs := bones[boneIndex]
		sb := seg.Bones[boneIndex]
		local := sampleIndex - seg.Start

		return transform.QVV{
			Rotation:    quatFromComponents(ReconstructComponents(bs.Rotation, sb.Rotation, seg.Start, local)),
			Translation: vec3FromComponents(ReconstructComponents(bs.Translation, sb.Translation, seg.Start, local)),
			Scale:       vec3FromComponents(ReconstructComponents(bs.Scale, sb.Scale, seg.Start, local)),
		}
	}
}

// ReconstructComponents reproduces the final, object-space-ready component
// values for one sub-track at one segment-local sample index, exactly as
// the decoder would (spec.md §4.9):
//   - default: the sub-track's identity value (handled by caller via Kind)
//   - constant: the frozen representative sample
//   - animated, raw rate: the untouched reference sample (lossless modulo
//     float32 storage)
//   - animated, constant-within-segment rate: the segment range's min,
//     denormalized through the clip range (the segment's own extent is by
//     construction ~0, so every sample in it maps to the same point)
//   - animated, variable rate: quantize-dequantize the segment-normalized
//     sample to the chosen bit width, then denormalize through segment and
//     clip range in turn
func ReconstructComponents(parent *SubTrack, sst *SegmentSubTrack, segStart, localIndex int) []float32 {
	switch parent.Kind {
	case section.SubTrackDefault:
		return parent.DefaultValue
	case section.SubTrackConstant:
		return parent.ConstantValue
	}

	out := make([]float32, parent.NumComponents)

	for c := 0; c < parent.NumComponents; c++ {
		clipR := parent.ClipRange[c]

		if sst.BitRate.IsRaw() {
			out[c] = parent.Reference[segStart+localIndex][c]

			continue
		}

		segMin, segExt := section.QuantizeRoundTrip(sst.Range[c].Min, sst.Range[c].Extent)

		if sst.BitRate.IsConstant() {
			out[c] = clipR.Denormalize(segMin)

			continue
		}

		bits := section.NumBitsAtRate(sst.BitRate)
		levels := float32((uint32(1) << uint(bits)) - 1)

		segNormalized := sst.Samples[localIndex][c]
		quantized := roundToLevels(segNormalized, levels)

		segValue := segMin + quantized*segExt
		out[c] = clipR.Denormalize(segValue)
	}

	return out
}

func roundToLevels(v, levels float32) float32 {
	if levels <= 0 {
		return v
	}

	q := float32(int32(v*levels + 0.5))

	return q / levels
}
