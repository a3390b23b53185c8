// Package clip implements the compression-time pipeline: the mutable clip
// context and every stage that transforms it, from raw samples through
// range extraction, constant/default collapsing, clip and segment
// normalization, segmentation, and the bit-rate quantizer search. Grounded
// on the teacher's encoder state-machine style (blob/numeric_encoder.go's
// locked-mode guard and encoderState cache-friendly field grouping).
package clip

import (
	"fmt"

	"github.com/animblob/animblob/errs"
	"github.com/animblob/animblob/format"
	"github.com/animblob/animblob/internal/options"
)

// Default constant-collapse thresholds, per spec.md §4.4. Rotation's
// threshold is an angle in degrees; CollapseConstants converts it into a
// per-component quaternion tolerance with degToChordThreshold (collapse.go).
const (
	DefaultRotationConstantThresholdDeg = 0.00284
	DefaultTranslationConstantThreshold = 0.001
	DefaultScaleConstantThreshold       = 0.00001
)

// Settings configures one compress call. Built with the generic functional
// option pattern from internal/options, exactly like
// blob.NumericEncoderOption.
type Settings struct {
	RotationFormat    format.RotationFormat
	TranslationFormat format.TranslationFormat
	ScaleFormat       format.ScaleFormat
	Level             format.CompressionLevel

	EnableDatabaseSupport bool

	IncludeContributingError  bool
	IncludeTrackListName      bool
	IncludeTrackNames         bool
	IncludeParentTrackIndices bool
	IncludeTrackDescriptions  bool
	MetadataCompression       format.CompressionType

	RotationConstantThresholdDeg float32
	TranslationConstantThreshold float32
	ScaleConstantThreshold       float32

	// RotationTolerance bounds how far a rotation sample may deviate from
	// unit length before the reformatter rejects it (spec.md §4.2).
	RotationTolerance float32
}

// Option configures a Settings value.
type Option = options.Option[*Settings]

// NewSettings builds a Settings from defaults plus the given options,
// validating unsupported combinations per spec.md §7.
func NewSettings(opts ...Option) (*Settings, error) {
	s := &Settings{
		RotationFormat:               format.RotationFormatDropWVariable,
		TranslationFormat:            format.TranslationFormatVariable,
		ScaleFormat:                  format.ScaleFormatVariable,
		Level:                        format.CompressionLevelMedium,
		MetadataCompression:          format.CompressionZstd,
		RotationConstantThresholdDeg: DefaultRotationConstantThresholdDeg,
		TranslationConstantThreshold: DefaultTranslationConstantThreshold,
		ScaleConstantThreshold:       DefaultScaleConstantThreshold,
		RotationTolerance:            0.005,
	}

	if err := options.Apply(s, opts...); err != nil {
		return nil, err
	}

	if err := s.validate(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Settings) validate() error {
	allRaw := s.RotationFormat != format.RotationFormatDropWVariable &&
		s.TranslationFormat == format.TranslationFormatFull &&
		s.ScaleFormat == format.ScaleFormatFull

	if s.IncludeContributingError && allRaw {
		return fmt.Errorf("%w: include_contributing_error requires at least one variable-rate sub-track", errs.ErrInvalidSettings)
	}

	return nil
}

// WithRotationFormat selects the on-disk rotation variant.
func WithRotationFormat(f format.RotationFormat) Option {
	return options.NoError(func(s *Settings) { s.RotationFormat = f })
}

// WithTranslationFormat selects the on-disk translation variant.
func WithTranslationFormat(f format.TranslationFormat) Option {
	return options.NoError(func(s *Settings) { s.TranslationFormat = f })
}

// WithScaleFormat selects the on-disk scale variant.
func WithScaleFormat(f format.ScaleFormat) Option {
	return options.NoError(func(s *Settings) { s.ScaleFormat = f })
}

// WithCompressionLevel controls the bit-rate search's aggressiveness.
func WithCompressionLevel(l format.CompressionLevel) Option {
	return options.NoError(func(s *Settings) { s.Level = l })
}

// WithMetadataFlags toggles which optional metadata trailer fields are
// written (spec.md §6).
func WithMetadataFlags(listName, trackNames, parentIndices, descriptions bool) Option {
	return options.NoError(func(s *Settings) {
		s.IncludeTrackListName = listName
		s.IncludeTrackNames = trackNames
		s.IncludeParentTrackIndices = parentIndices
		s.IncludeTrackDescriptions = descriptions
	})
}

// WithMetadataCompression selects the codec used for the metadata trailer.
func WithMetadataCompression(c format.CompressionType) Option {
	return options.NoError(func(s *Settings) { s.MetadataCompression = c })
}

// WithDatabaseSupport reserves header space for later side-car extraction
// (spec.md §6 enable_database_support). It only changes metadata flags.
func WithDatabaseSupport(enabled bool) Option {
	return options.NoError(func(s *Settings) { s.EnableDatabaseSupport = enabled })
}

// WithContributingError enables the per-sub-track contributing-error
// metadata field.
func WithContributingError(enabled bool) Option {
	return options.NoError(func(s *Settings) { s.IncludeContributingError = enabled })
}

// WithConstantThresholds overrides the default constant-collapse
// thresholds for all bones that don't specify their own override in
// transform.BoneDesc.
func WithConstantThresholds(rotationDeg, translation, scale float32) Option {
	return options.NoError(func(s *Settings) {
		s.RotationConstantThresholdDeg = rotationDeg
		s.TranslationConstantThreshold = translation
		s.ScaleConstantThreshold = scale
	})
}
