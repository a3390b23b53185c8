package clip

import (
	"fmt"

	"github.com/animblob/animblob/errs"
	"github.com/animblob/animblob/section"
	"github.com/animblob/animblob/transform"
)

// Stage is the clip context's one-way state machine (spec.md §4.10):
//
//	Empty -> Raw -> RangesExtracted -> ConstantsCollapsed -> Normalized ->
//	Segmented -> SegmentNormalized -> Quantized -> Written
//
// Transitions only move forward; the writer only reads a Quantized context.
type Stage int

const (
	StageEmpty Stage = iota
	StageRaw
	StageRangesExtracted
	StageConstantsCollapsed
	StageNormalized
	StageSegmented
	StageSegmentNormalized
	StageQuantized
	StageWritten
)

func (s Stage) String() string {
	names := [...]string{
		"Empty", "Raw", "RangesExtracted", "ConstantsCollapsed", "Normalized",
		"Segmented", "SegmentNormalized", "Quantized", "Written",
	}
	if int(s) < len(names) {
		return names[s]
	}

	return "Unknown"
}

// rotationComponents / translationComponents / scaleComponents fix the
// number of components the pipeline carries internally for each stream.
// Rotation always carries all four quaternion components through the
// pipeline even under a drop-W format; only the writer/decoder special-case
// w based on the chosen format, which keeps every intermediate stage
// format-agnostic.
const (
	rotationComponents    = 4
	translationComponents = 3
	scaleComponents       = 3
)

// SubTrack is one bone's mutable state for a single sub-track (rotation,
// translation, or scale) as it flows through the pipeline. Samples holds the
// current representation: raw after NewContext, clip-normalized after
// NormalizeClip (only for animated sub-tracks; constant/default sub-tracks
// are left in raw form since only one representative sample is ever read
// from them again).
type SubTrack struct {
	NumComponents int
	Samples       [][]float32 // [sampleIndex][component], current-stage values
	Reference     [][]float32 // raw, reformatted values frozen at range-extraction time; used as the error metric's ground truth
	ClipRange     []section.ClipRange

	Kind          section.SubTrackKind
	ConstantValue []float32
	DefaultValue  []float32
}

func newSubTrack(numSamples, numComponents int) *SubTrack {
	samples := make([][]float32, numSamples)
	for i := range samples {
		samples[i] = make([]float32, numComponents)
	}

	return &SubTrack{
		NumComponents: numComponents,
		Samples:       samples,
		ClipRange:     make([]section.ClipRange, numComponents),
	}
}

// IsAnimated reports whether this sub-track survived collapsing as a fully
// animated stream (not default, not constant).
func (st *SubTrack) IsAnimated() bool {
	return st.Kind == section.SubTrackAnimatedVariable || st.Kind == section.SubTrackAnimatedRaw
}

// BoneStreams groups one bone's three sub-tracks.
type BoneStreams struct {
	Desc        transform.BoneDesc
	Rotation    *SubTrack
	Translation *SubTrack
	Scale       *SubTrack
}

// Streams returns the three sub-tracks paired with their section.SubTrackStream
// tag, in the canonical on-disk order (rotation, translation, scale).
func (b *BoneStreams) Streams() [3]struct {
	Kind section.SubTrackStream
	Sub  *SubTrack
} {
	return [3]struct {
		Kind section.SubTrackStream
		Sub  *SubTrack
	}{
		{section.StreamRotation, b.Rotation},
		{section.StreamTranslation, b.Translation},
		{section.StreamScale, b.Scale},
	}
}

// Context is the mutable compression-time state for one clip, owned
// exclusively by the compressor until the writer reads it in the Quantized
// stage and it is discarded (spec.md §3 "Clip context" / §4.10).
type Context struct {
	Tracks   transform.TrackArray
	Settings *Settings
	Stage    Stage

	Bones []*BoneStreams

	TopoOrder []int

	Segments []*Segment

	Warnings []Warning

	HasScale bool
}

// Warning records a non-fatal issue surfaced to the caller rather than
// failing compression (spec.md §4.7.2c, §7).
type Warning struct {
	BoneIndex int
	Message   string
}

// scaleDeviationTolerance is how far a scale sample may differ from the
// clip's default scale before HasScale is set, per spec.md §4.1.
const scaleDeviationTolerance = 1e-6

// NewContext builds a clip context from a validated track array: it copies
// raw samples into owned, mutable per-bone streams, normalizes quaternion
// hemispheres so adjacent samples take the shorter interpolation path, and
// classifies scale presence.
func NewContext(tracks transform.TrackArray, settings *Settings) (*Context, error) {
	if err := tracks.Validate(); err != nil {
		return nil, err
	}

	n := tracks.SampleCount()
	defaultScale := tracks.DefaultScale()

	ctx := &Context{
		Tracks:   tracks,
		Settings: settings,
		Stage:    StageEmpty,
		Bones:    make([]*BoneStreams, len(tracks.Tracks)),
	}

	for bi, tr := range tracks.Tracks {
		bs := &BoneStreams{
			Desc:        tr.Desc,
			Rotation:    newSubTrack(n, rotationComponents),
			Translation: newSubTrack(n, translationComponents),
			Scale:       newSubTrack(n, scaleComponents),
		}
		bs.Rotation.DefaultValue = []float32{0, 0, 0, 1}
		bs.Translation.DefaultValue = []float32{0, 0, 0}
		bs.Scale.DefaultValue = []float32{defaultScale.X, defaultScale.Y, defaultScale.Z}

		var prevRot transform.Quat
		for si, sample := range tr.Samples {
			q := sample.Rotation
			if si > 0 && q.Dot(prevRot) < 0 {
				q = q.Negate()
			}
			prevRot = q

			bs.Rotation.Samples[si][0] = q.X
			bs.Rotation.Samples[si][1] = q.Y
			bs.Rotation.Samples[si][2] = q.Z
			bs.Rotation.Samples[si][3] = q.W

			bs.Translation.Samples[si][0] = sample.Translation.X
			bs.Translation.Samples[si][1] = sample.Translation.Y
			bs.Translation.Samples[si][2] = sample.Translation.Z

			bs.Scale.Samples[si][0] = sample.Scale.X
			bs.Scale.Samples[si][1] = sample.Scale.Y
			bs.Scale.Samples[si][2] = sample.Scale.Z

			if !sample.Scale.NearEqual(defaultScale, scaleDeviationTolerance) {
				ctx.HasScale = true
			}
		}

		ctx.Bones[bi] = bs
	}

	ctx.TopoOrder = tracks.TopologicalOrder()
	ctx.Stage = StageRaw

	return ctx, nil
}

// requireStage enforces the one-way state machine guard described by
// spec.md §4.10, mirroring blob.NumericEncoder's locked-mode checks.
func (c *Context) requireStage(want Stage) error {
	if c.Stage != want {
		return fmt.Errorf("%w: need %s, have %s", errs.ErrInvalidStageTransition, want, c.Stage)
	}

	return nil
}

// addWarning records a non-fatal issue against a bone.
func (c *Context) addWarning(boneIndex int, format string, args ...any) {
	c.Warnings = append(c.Warnings, Warning{BoneIndex: boneIndex, Message: fmt.Sprintf(format, args...)})
}
