package section

// QuantizedRange is a segment's per-component range stored at 8-bit
// precision (spec.md §3 item 9, §8 "1/255" invariant): min and extent of a
// clip-normalized animated sub-track component, both in [0,1].
type QuantizedRange struct {
	Min, Extent uint8
}

// EncodeRangeComponent quantizes a [0,1] float into the 8-bit fixed-point
// representation used by segment range records.
func EncodeRangeComponent(v float32) uint8 {
	if v <= 0 {
		return 0
	}

	if v >= 1 {
		return 255
	}

	return uint8(v*255 + 0.5)
}

// DecodeRangeComponent turns an 8-bit fixed-point value back into [0,1].
func DecodeRangeComponent(v uint8) float32 {
	return float32(v) / 255
}

// QuantizeRoundTrip simulates the precision loss of storing a [0,1] (min,
// extent) pair as an 8-bit fixed-point QuantizedRange and reading it back.
// The bit-rate quantizer search uses this so its error estimates match what
// the decoder will actually reconstruct from the written blob.
func QuantizeRoundTrip(min, extent float32) (float32, float32) {
	qmin := EncodeRangeComponent(min)
	qext := EncodeRangeComponent(extent)

	return DecodeRangeComponent(qmin), DecodeRangeComponent(qext)
}

// ClipRange is a full-precision (min, extent) pair stored in the clip-range
// pool for one component of one animated sub-track (spec.md §3 item 8).
type ClipRange struct {
	Min, Extent float32
}

// Normalize maps a raw sample value into [0,1] using this range, per
// spec.md §4.5. A zero-extent range maps every value to 0.
func (r ClipRange) Normalize(v float32) float32 {
	if r.Extent == 0 {
		return 0
	}

	n := (v - r.Min) / r.Extent
	if n < 0 {
		return 0
	}

	if n > 1 {
		return 1
	}

	return n
}

// Denormalize maps a [0,1] value back into this range's original units.
func (r ClipRange) Denormalize(n float32) float32 {
	return r.Min + n*r.Extent
}
