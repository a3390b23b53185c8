// Package transform defines the math and track data types shared by the
// compression pipeline and the decoder: vectors, quaternions, the
// rotation+translation+scale transform, and the track-array input/output
// shape the codec operates on.
package transform

import "github.com/animblob/animblob/errs"

// QVV is a single rigid transform sample: rotation quaternion, translation
// vector, and scale vector. The name mirrors the "qvvf" sample shape from
// spec.md §3.
type QVV struct {
	Rotation    Quat
	Translation Vec3
	Scale       Vec3
}

// IdentityQVV is the default transform for a bone with no animation at all.
var IdentityQVV = QVV{Rotation: IdentityQuat, Translation: ZeroVec3, Scale: OneVec3}

// IsFinite reports whether every component of every sub-track is finite.
func (q QVV) IsFinite() bool {
	return q.Rotation.IsFinite() && q.Translation.IsFinite() && q.Scale.IsFinite()
}

// ComposeQVV composes a local transform onto a parent's object-space
// transform, producing the child's object-space transform. Used by the
// error metric (spec.md §4.11) to walk root-to-bone chains.
func ComposeQVV(parent, local QVV) QVV {
	scaledLocalTranslation := local.Translation.Mul(parent.Scale)

	return QVV{
		Rotation:    parent.Rotation.Mul(local.Rotation),
		Translation: parent.Rotation.RotateVector(scaledLocalTranslation).Add(parent.Translation),
		Scale:       parent.Scale.Mul(local.Scale),
	}
}

// TransformPoint applies q's full rigid+scale transform to a local point,
// producing its position in q's parent space.
func (q QVV) TransformPoint(p Vec3) Vec3 {
	scaled := p.Mul(q.Scale)

	return q.Rotation.RotateVector(scaled).Add(q.Translation)
}

// BoneDesc describes one transform track's static metadata: its place in the
// hierarchy and the error budget the quantizer must respect for it.
type BoneDesc struct {
	// ParentIndex is the index of this bone's parent track, or -1 for a root.
	ParentIndex int32
	// Precision is the maximum allowed object-space error, per spec.md §4.11.
	Precision float32
	// ShellDistance is the lever-arm length used by the error metric.
	ShellDistance float32
	// RotationConstantThreshold overrides the default rotation-angle
	// constant-collapse threshold (degrees) when non-zero.
	RotationConstantThreshold float32
	// TranslationConstantThreshold overrides the default translation
	// constant-collapse threshold when non-zero.
	TranslationConstantThreshold float32
	// ScaleConstantThreshold overrides the default scale constant-collapse
	// threshold when non-zero.
	ScaleConstantThreshold float32
	// Name is the bone's human-readable name, written to the optional
	// metadata trailer when clip.Settings.IncludeTrackNames is set.
	Name string
	// Description is free-form documentation for the bone, written to the
	// optional metadata trailer when clip.Settings.IncludeTrackDescriptions
	// is set.
	Description string
}

// IsRoot reports whether this bone has no parent.
func (b BoneDesc) IsRoot() bool {
	return b.ParentIndex < 0
}

// Track is one bone's full sample sequence at the clip's sample rate.
type Track struct {
	Desc    BoneDesc
	Samples []QVV
}

// TrackArray is a set of same-length, same-rate transform tracks: the raw
// input to compression. Invariants enforced by Validate: every track shares
// SampleCount and SampleRate; TrackCount ≤ 2^31; SampleCount ≤ 65535.
type TrackArray struct {
	Tracks     []Track
	SampleRate float32
	// Name is the clip's human-readable name, written to the optional
	// metadata trailer when clip.Settings.IncludeTrackListName is set.
	Name string
	// AdditiveBase marks the clip as meant to be composed on top of a base
	// pose, which changes the scale sub-track's default value (see
	// AdditiveFormat).
	AdditiveBase bool
	// AdditiveFormat selects which additive convention applies when
	// AdditiveBase is set. Only meaningful when AdditiveBase is true.
	AdditiveFormat AdditiveFormat
}

// AdditiveFormat distinguishes the additive-clip conventions that change the
// default scale value, per spec.md §9 Open Questions.
type AdditiveFormat uint8

const (
	// AdditiveFormatNone is used for non-additive clips; default scale is 1.
	AdditiveFormatNone AdditiveFormat = iota
	// AdditiveFormatAdditive1 is the "additive1" convention where the
	// default (identity) scale is 0, since the decoded scale is added to the
	// base pose's scale rather than multiplied.
	AdditiveFormatAdditive1
)

// DefaultScale returns the identity scale value for this track array's
// additive convention.
func (ta TrackArray) DefaultScale() Vec3 {
	if ta.AdditiveBase && ta.AdditiveFormat == AdditiveFormatAdditive1 {
		return Vec3{}
	}

	return OneVec3
}

const (
	// MaxSampleCount is the largest sample count spec.md §3 allows.
	MaxSampleCount = 65535
	// MaxTrackCount is the largest track count spec.md §3 allows.
	MaxTrackCount = 1 << 31
)

// SampleCount returns the shared sample count of every track, or 0 if empty.
func (ta TrackArray) SampleCount() int {
	if len(ta.Tracks) == 0 {
		return 0
	}

	return len(ta.Tracks[0].Samples)
}

// Validate checks the structural invariants spec.md §3/§4.1 require before a
// track array may enter the compression pipeline.
func (ta TrackArray) Validate() error {
	if len(ta.Tracks) == 0 {
		return errs.ErrEmptyTrackArray
	}

	if len(ta.Tracks) > MaxTrackCount {
		return errs.ErrTooManyTracks
	}

	n := ta.SampleCount()
	if n > MaxSampleCount {
		return errs.ErrTooManySamples
	}

	for _, tr := range ta.Tracks {
		if len(tr.Samples) != n {
			return errs.ErrMismatchedTrackLengths
		}

		for _, s := range tr.Samples {
			if !s.IsFinite() {
				return errs.ErrNonFiniteSample
			}
		}

		if int(tr.Desc.ParentIndex) >= len(ta.Tracks) {
			return errs.ErrMismatchedTrackLengths
		}
	}

	return nil
}

// TopologicalOrder returns track indices ordered so that every bone appears
// after its parent (roots first), per spec.md §9's "precompute once per
// compression" design note. Panics if a cycle is present (the input is
// expected to already have passed Validate).
func (ta TrackArray) TopologicalOrder() []int {
	order := make([]int, 0, len(ta.Tracks))
	visited := make([]uint8, len(ta.Tracks)) // 0=unvisited, 1=in-progress, 2=done

	var visit func(i int)
	visit = func(i int) {
		switch visited[i] {
		case 2:
			return
		case 1:
			panic("transform: cyclic bone hierarchy")
		}

		visited[i] = 1
		p := ta.Tracks[i].Desc.ParentIndex
		if p >= 0 {
			visit(int(p))
		}
		visited[i] = 2
		order = append(order, i)
	}

	for i := range ta.Tracks {
		visit(i)
	}

	return order
}
