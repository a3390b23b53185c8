package acl_test

import (
	"math"
	"testing"

	acl "github.com/animblob/animblob"
	"github.com/animblob/animblob/clip"
	"github.com/animblob/animblob/errs"
	"github.com/animblob/animblob/format"
	"github.com/animblob/animblob/section"
	"github.com/animblob/animblob/transform"
	"github.com/stretchr/testify/require"
)

// capturePose is a minimal acl.Sink that records the last decoded pose per
// track, used by every round-trip test below to inspect decoder output.
type capturePose struct {
	acl.NoOpSink
	rot   []transform.Quat
	trans []transform.Vec3
	scale []transform.Vec3
}

func newCapturePose(n int) *capturePose {
	return &capturePose{rot: make([]transform.Quat, n), trans: make([]transform.Vec3, n), scale: make([]transform.Vec3, n)}
}

func (c *capturePose) WriteRotation(i int, q transform.Quat)    { c.rot[i] = q }
func (c *capturePose) WriteTranslation(i int, v transform.Vec3) { c.trans[i] = v }
func (c *capturePose) WriteScale(i int, v transform.Vec3)       { c.scale[i] = v }

func identitySamples(n int) []transform.QVV {
	samples := make([]transform.QVV, n)
	for i := range samples {
		samples[i] = transform.IdentityQVV
	}

	return samples
}

func quatAboutY(rad float64) transform.Quat {
	return transform.Quat{Y: float32(math.Sin(rad / 2)), W: float32(math.Cos(rad / 2))}
}

func requireQuatNear(t *testing.T, want, got transform.Quat, tol float64) {
	t.Helper()
	// got may be in either hemisphere; both represent the same rotation.
	if got.Dot(want) < 0 {
		got = got.Negate()
	}
	require.InDelta(t, float64(want.X), float64(got.X), tol)
	require.InDelta(t, float64(want.Y), float64(got.Y), tol)
	require.InDelta(t, float64(want.Z), float64(got.Z), tol)
	require.InDelta(t, float64(want.W), float64(got.W), tol)
}

func mustSettings(t *testing.T, opts ...clip.Option) *clip.Settings {
	t.Helper()
	s, err := clip.NewSettings(opts...)
	require.NoError(t, err)

	return s
}

// Scenario 1 (spec.md §8): every bone/sub-track is identity; the blob must
// contain no constant pool and no animated stream, and decode at any time
// must reproduce the identity pose exactly.
func TestRoundTrip_AllIdentity(t *testing.T) {
	tracks := transform.TrackArray{
		Tracks: []transform.Track{
			{Desc: transform.BoneDesc{ParentIndex: -1, Precision: 0.01, ShellDistance: 1}, Samples: identitySamples(4)},
			{Desc: transform.BoneDesc{ParentIndex: 0, Precision: 0.01, ShellDistance: 1}, Samples: identitySamples(4)},
			{Desc: transform.BoneDesc{ParentIndex: 1, Precision: 0.01, ShellDistance: 1}, Samples: identitySamples(4)},
		},
		SampleRate: 30,
	}

	result, err := acl.CompressTransformClip(tracks, mustSettings(t))
	require.NoError(t, err)
	require.Empty(t, result.Warnings)
	require.Less(t, len(result.Bytes), 256)

	ct, err := acl.MakeCompressedTracks(result.Bytes)
	require.NoError(t, err)
	require.NoError(t, ct.IsValid(true))
	require.Equal(t, 3, ct.TrackCount())
	require.Equal(t, 4, ct.SampleCount())

	dc := acl.NewDecompressionContext(ct)
	dc.Seek(0.123, format.RoundNone)

	sink := newCapturePose(3)
	require.NoError(t, dc.DecompressTracks(sink))

	for i := 0; i < 3; i++ {
		requireQuatNear(t, transform.IdentityQuat, sink.rot[i], 1e-6)
		require.InDelta(t, 0.0, float64(sink.trans[i].Length()), 1e-6)
		require.Equal(t, transform.OneVec3, sink.scale[i])
	}
}

// Scenario 2: a single root bone whose rotation never changes collapses to
// the constant pool; decode at any time must return that exact rotation.
func TestRoundTrip_ConstantRotation(t *testing.T) {
	q := transform.Quat{X: 0.383, W: 0.924}
	samples := identitySamples(4)
	for i := range samples {
		samples[i].Rotation = q
	}

	tracks := transform.TrackArray{
		Tracks:     []transform.Track{{Desc: transform.BoneDesc{ParentIndex: -1, Precision: 0.01, ShellDistance: 1}, Samples: samples}},
		SampleRate: 30,
	}

	result, err := acl.CompressTransformClip(tracks, mustSettings(t))
	require.NoError(t, err)

	ct, err := acl.MakeCompressedTracks(result.Bytes)
	require.NoError(t, err)
	require.NoError(t, ct.IsValid(true))

	dc := acl.NewDecompressionContext(ct)
	for _, tm := range []float32{0, 0.03, 0.099} {
		dc.Seek(tm, format.RoundNone)
		sink := newCapturePose(1)
		require.NoError(t, dc.DecompressTracks(sink))
		requireQuatNear(t, q, sink.rot[0], 0.01)
	}
}

// Scenario 3: two samples, identity to a 90 degree rotation about Y; decode
// at the midpoint must land within 0.5 degrees of 45 degrees (spec.md §8).
func TestRoundTrip_LinearRotationInterpolation(t *testing.T) {
	samples := []transform.QVV{transform.IdentityQVV, transform.IdentityQVV}
	samples[1].Rotation = quatAboutY(math.Pi / 2)

	tracks := transform.TrackArray{
		Tracks: []transform.Track{{
			Desc:    transform.BoneDesc{ParentIndex: -1, Precision: 0.0001, ShellDistance: 1},
			Samples: samples,
		}},
		SampleRate: 2,
	}

	settings := mustSettings(t, clip.WithCompressionLevel(format.CompressionLevelMedium))

	result, err := acl.CompressTransformClip(tracks, settings)
	require.NoError(t, err)

	ct, err := acl.MakeCompressedTracks(result.Bytes)
	require.NoError(t, err)

	dc := acl.NewDecompressionContext(ct)
	dc.Seek(0.25, format.RoundNone) // duration is 0.5s; 0.25s is the midpoint

	sink := newCapturePose(1)
	require.NoError(t, dc.DecompressTracks(sink))

	gotDeg := float64(sink.rot[0].AngleAbout(1)) * 180 / math.Pi
	require.InDelta(t, 45.0, gotDeg, 0.5)
}

// Scenario 4: a 40-sample clip at 30Hz must be partitioned into two
// segments, and decoding at every original sample index with floor rounding
// must reproduce the reference sample closely.
func TestRoundTrip_TwoSegmentClip(t *testing.T) {
	const n = 40
	samples := make([]transform.QVV, n)
	for i := range samples {
		samples[i] = transform.IdentityQVV
		samples[i].Rotation = quatAboutY(float64(i) * (math.Pi / 80))
	}

	tracks := transform.TrackArray{
		Tracks: []transform.Track{{
			Desc:    transform.BoneDesc{ParentIndex: -1, Precision: 0.001, ShellDistance: 1},
			Samples: samples,
		}},
		SampleRate: 30,
	}

	result, err := acl.CompressTransformClip(tracks, mustSettings(t))
	require.NoError(t, err)

	ct, err := acl.MakeCompressedTracks(result.Bytes)
	require.NoError(t, err)
	require.Equal(t, 2, ct.SegmentCount())

	dc := acl.NewDecompressionContext(ct)
	for i := 0; i < n; i++ {
		tm := float32(i) / 30
		dc.Seek(tm, format.RoundFloor)

		sink := newCapturePose(1)
		require.NoError(t, dc.DecompressTracks(sink))
		requireQuatNear(t, samples[i].Rotation, sink.rot[0], 0.02)
	}
}

// Scenario 5: flipping a byte after the raw_buffer_header must be caught by
// IsValid(checkHash=true).
func TestIsValid_DetectsHashTamper(t *testing.T) {
	tracks := transform.TrackArray{
		Tracks: []transform.Track{{
			Desc:    transform.BoneDesc{ParentIndex: -1, Precision: 0.01, ShellDistance: 1},
			Samples: identitySamples(4),
		}},
		SampleRate: 30,
	}

	result, err := acl.CompressTransformClip(tracks, mustSettings(t))
	require.NoError(t, err)

	tampered := append([]byte(nil), result.Bytes...)
	tampered[section.RawBufferHeaderSize+7] ^= 0xFF

	ct, err := acl.MakeCompressedTracks(tampered)
	require.NoError(t, err)
	require.ErrorIs(t, ct.IsValid(true), errs.ErrHashMismatch)
}

// Scenario 6: a non-finite input sample must be rejected before any
// allocation of pipeline state.
func TestCompress_RejectsNonFiniteSample(t *testing.T) {
	samples := identitySamples(2)
	samples[1].Translation.X = float32(math.NaN())

	tracks := transform.TrackArray{
		Tracks:     []transform.Track{{Desc: transform.BoneDesc{ParentIndex: -1, Precision: 0.01, ShellDistance: 1}, Samples: samples}},
		SampleRate: 30,
	}

	_, err := acl.CompressTransformClip(tracks, mustSettings(t))
	require.ErrorIs(t, err, errs.ErrNonFiniteSample)
}

func TestDecompressTrack_OutOfRangeIndex(t *testing.T) {
	tracks := transform.TrackArray{
		Tracks:     []transform.Track{{Desc: transform.BoneDesc{ParentIndex: -1, Precision: 0.01, ShellDistance: 1}, Samples: identitySamples(2)}},
		SampleRate: 30,
	}

	result, err := acl.CompressTransformClip(tracks, mustSettings(t))
	require.NoError(t, err)

	ct, err := acl.MakeCompressedTracks(result.Bytes)
	require.NoError(t, err)

	dc := acl.NewDecompressionContext(ct)
	dc.Seek(0, format.RoundNone)

	sink := newCapturePose(1)
	require.ErrorIs(t, dc.DecompressTrack(5, sink), errs.ErrTrackIndexOutOfRange)
}

func TestMetadataTrailer_RoundTrip(t *testing.T) {
	tracks := transform.TrackArray{
		Name: "walk_cycle",
		Tracks: []transform.Track{
			{Desc: transform.BoneDesc{ParentIndex: -1, Precision: 0.01, ShellDistance: 1, Name: "root"}, Samples: identitySamples(4)},
			{Desc: transform.BoneDesc{ParentIndex: 0, Precision: 0.01, ShellDistance: 1, Name: "spine"}, Samples: identitySamples(4)},
		},
		SampleRate: 30,
	}

	settings := mustSettings(t, clip.WithMetadataFlags(true, true, true, false))

	result, err := acl.CompressTransformClip(tracks, settings)
	require.NoError(t, err)

	ct, err := acl.MakeCompressedTracks(result.Bytes)
	require.NoError(t, err)
	require.True(t, ct.HasMetadata())

	md, err := ct.ReadMetadata()
	require.NoError(t, err)
	require.Equal(t, "walk_cycle", md.ListName)
	require.Equal(t, []string{"root", "spine"}, md.TrackNames)
	require.Equal(t, []int32{-1, 0}, md.ParentIndices)
}
