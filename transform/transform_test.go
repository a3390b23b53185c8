package transform_test

import (
	"math"
	"testing"

	"github.com/animblob/animblob/errs"
	"github.com/animblob/animblob/transform"
	"github.com/stretchr/testify/require"
)

func track(parent int32, n int) transform.Track {
	samples := make([]transform.QVV, n)
	for i := range samples {
		samples[i] = transform.IdentityQVV
	}

	return transform.Track{Desc: transform.BoneDesc{ParentIndex: parent}, Samples: samples}
}

func TestTrackArray_Validate_Empty(t *testing.T) {
	var ta transform.TrackArray
	require.ErrorIs(t, ta.Validate(), errs.ErrEmptyTrackArray)
}

func TestTrackArray_Validate_MismatchedLengths(t *testing.T) {
	ta := transform.TrackArray{Tracks: []transform.Track{track(-1, 4), track(-1, 3)}}
	require.ErrorIs(t, ta.Validate(), errs.ErrMismatchedTrackLengths)
}

func TestTrackArray_Validate_NonFinite(t *testing.T) {
	tr := track(-1, 2)
	tr.Samples[1].Translation.X = float32(math.NaN())
	ta := transform.TrackArray{Tracks: []transform.Track{tr}}
	require.ErrorIs(t, ta.Validate(), errs.ErrNonFiniteSample)
}

func TestTrackArray_Validate_BadParentIndex(t *testing.T) {
	ta := transform.TrackArray{Tracks: []transform.Track{track(5, 2)}}
	require.Error(t, ta.Validate())
}

func TestTrackArray_Validate_OK(t *testing.T) {
	ta := transform.TrackArray{Tracks: []transform.Track{track(-1, 4), track(0, 4)}, SampleRate: 30}
	require.NoError(t, ta.Validate())
	require.Equal(t, 4, ta.SampleCount())
}

func TestTrackArray_TopologicalOrder_RootsFirst(t *testing.T) {
	// bone 0 is root, bone 1's parent is bone 2, bone 2's parent is bone 0.
	ta := transform.TrackArray{Tracks: []transform.Track{
		track(-1, 2),
		track(2, 2),
		track(0, 2),
	}}

	order := ta.TopologicalOrder()
	require.Len(t, order, 3)

	pos := make(map[int]int, 3)
	for i, bi := range order {
		pos[bi] = i
	}

	require.Less(t, pos[0], pos[2], "bone 0 must precede its child bone 2")
	require.Less(t, pos[2], pos[1], "bone 2 must precede its child bone 1")
}

func TestTrackArray_DefaultScale(t *testing.T) {
	plain := transform.TrackArray{}
	require.Equal(t, transform.OneVec3, plain.DefaultScale())

	additive := transform.TrackArray{AdditiveBase: true, AdditiveFormat: transform.AdditiveFormatAdditive1}
	require.Equal(t, transform.ZeroVec3, additive.DefaultScale())

	additiveNone := transform.TrackArray{AdditiveBase: true, AdditiveFormat: transform.AdditiveFormatNone}
	require.Equal(t, transform.OneVec3, additiveNone.DefaultScale())
}

func TestComposeQVV_Identity(t *testing.T) {
	local := transform.QVV{
		Rotation:    transform.Quat{W: 1},
		Translation: transform.Vec3{X: 1, Y: 2, Z: 3},
		Scale:       transform.OneVec3,
	}

	got := transform.ComposeQVV(transform.IdentityQVV, local)
	require.Equal(t, local.Translation, got.Translation)
}

func TestComposeQVV_ParentScaleAppliesToChildTranslation(t *testing.T) {
	parent := transform.QVV{Rotation: transform.IdentityQuat, Translation: transform.ZeroVec3, Scale: transform.Vec3{X: 2, Y: 2, Z: 2}}
	local := transform.QVV{Rotation: transform.IdentityQuat, Translation: transform.Vec3{X: 1, Y: 0, Z: 0}, Scale: transform.OneVec3}

	got := transform.ComposeQVV(parent, local)
	require.InDelta(t, 2.0, float64(got.Translation.X), 1e-6)
}
