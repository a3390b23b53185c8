package section_test

import (
	"testing"

	"github.com/animblob/animblob/errs"
	"github.com/animblob/animblob/section"
	"github.com/stretchr/testify/require"
)

func TestPackUnpackSubTrackKinds_RoundTrip(t *testing.T) {
	kinds := []section.SubTrackKind{
		section.SubTrackDefault, section.SubTrackConstant, section.SubTrackAnimatedVariable,
		section.SubTrackAnimatedRaw, section.SubTrackDefault, section.SubTrackAnimatedVariable,
		section.SubTrackConstant, section.SubTrackAnimatedRaw, section.SubTrackDefault,
		section.SubTrackDefault, section.SubTrackDefault, section.SubTrackDefault,
		section.SubTrackDefault, section.SubTrackDefault, section.SubTrackDefault,
		section.SubTrackDefault, section.SubTrackConstant, section.SubTrackAnimatedVariable,
	}

	words := section.PackSubTrackKinds(kinds)
	require.Equal(t, section.SubTrackTypeWordsSize(len(kinds), 0, 0), len(words)*4)

	for i, want := range kinds {
		require.Equal(t, want, section.UnpackSubTrackKind(words, i), "index %d", i)
	}
}

func TestEncodeDecodeRangeComponent_RoundTrip(t *testing.T) {
	cases := []float32{0, 0.5, 1, 0.3333, 0.999}
	for _, v := range cases {
		enc := section.EncodeRangeComponent(v)
		dec := section.DecodeRangeComponent(enc)
		require.InDelta(t, float64(v), float64(dec), 1.0/255.0, "value %v", v)
	}
}

func TestEncodeRangeComponent_Clamps(t *testing.T) {
	require.Equal(t, uint8(0), section.EncodeRangeComponent(-1))
	require.Equal(t, uint8(255), section.EncodeRangeComponent(2))
}

func TestClipRange_NormalizeDenormalize_RoundTrip(t *testing.T) {
	r := section.ClipRange{Min: -2, Extent: 4}

	n := r.Normalize(0)
	require.InDelta(t, 0.5, float64(n), 1e-6)

	back := r.Denormalize(n)
	require.InDelta(t, 0.0, float64(back), 1e-5)
}

func TestClipRange_Normalize_ZeroExtent(t *testing.T) {
	r := section.ClipRange{Min: 3, Extent: 0}
	require.Equal(t, float32(0), r.Normalize(100))
}

func TestClipRange_Normalize_Clamps(t *testing.T) {
	r := section.ClipRange{Min: 0, Extent: 1}
	require.Equal(t, float32(0), r.Normalize(-5))
	require.Equal(t, float32(1), r.Normalize(5))
}

func TestRawBufferHeader_BytesParse_RoundTrip(t *testing.T) {
	h := section.RawBufferHeader{Size: 1234, Hash: 0xDEADBEEF}
	b := h.Bytes()
	require.Len(t, b, section.RawBufferHeaderSize)

	got, err := section.ParseRawBufferHeader(b)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestRawBufferHeader_ParseTooShort(t *testing.T) {
	_, err := section.ParseRawBufferHeader([]byte{1, 2, 3})
	require.ErrorIs(t, err, errs.ErrInvalidHeaderSize)
}

func TestTracksHeader_BytesParse_RoundTrip(t *testing.T) {
	h := section.TracksHeader{
		Tag: section.MagicTag, Version: section.FormatVersion, TrackType: section.TrackTypeTransform,
		TrackCount: 3, SampleCount: 40, SampleRate: 30,
		RotationFormat: 2, TranslationFormat: 1, ScaleFormat: 1, Flags: section.FlagHasScale,
	}

	got, err := section.ParseTracksHeader(h.Bytes())
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestTracksHeader_Parse_RejectsBadMagic(t *testing.T) {
	h := section.TracksHeader{Tag: 0x1, Version: section.FormatVersion}
	_, err := section.ParseTracksHeader(h.Bytes())
	require.ErrorIs(t, err, errs.ErrInvalidMagic)
}

func TestTracksHeader_Parse_RejectsFutureVersion(t *testing.T) {
	h := section.TracksHeader{Tag: section.MagicTag, Version: section.FormatVersion + 1}
	_, err := section.ParseTracksHeader(h.Bytes())
	require.ErrorIs(t, err, errs.ErrUnsupportedVersion)
}

func TestTransformTracksHeader_BytesParse_RoundTrip(t *testing.T) {
	h := section.TransformTracksHeader{
		SegmentCount: 2, RotationCount: 3, TranslationCount: 3, ScaleCount: 3,
		SegmentStartsOff: 36, SegmentHeadersOff: 60, SubTrackTypesOff: 92,
		ConstantPoolOff: 96, ClipRangePoolOff: 120,
	}

	got, err := section.ParseTransformTracksHeader(h.Bytes())
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestTransformTracksHeader_Parse_RejectsMisalignment(t *testing.T) {
	h := section.TransformTracksHeader{SubTrackTypesOff: 3}
	_, err := section.ParseTransformTracksHeader(h.Bytes())
	require.ErrorIs(t, err, errs.ErrMisaligned)
}

func TestSegmentHeader_BytesParse_RoundTrip(t *testing.T) {
	h := section.SegmentHeader{DataOffset: 16, AnimatedBitCount: 128, SampleCount: 16, RangeDataOffset: 20}
	got, err := section.ParseSegmentHeader(h.Bytes())
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestNumBitsAtRate_Sentinels(t *testing.T) {
	require.Equal(t, 0, section.NumBitsAtRate(section.BitRateConstant))
	require.Equal(t, 32, section.NumBitsAtRate(section.BitRateRaw))
	require.True(t, section.BitRateConstant.IsConstant())
	require.True(t, section.BitRateRaw.IsRaw())
	require.False(t, section.BitRateRaw.IsConstant())
}

func TestQuantizeRoundTrip_MatchesDecodeComponent(t *testing.T) {
	min, ext := section.QuantizeRoundTrip(0.2, 0.6)
	require.InDelta(t, 0.2, float64(min), 1.0/255.0)
	require.InDelta(t, 0.6, float64(ext), 1.0/255.0)
}
