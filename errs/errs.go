// Package errs defines the sentinel errors returned across the codec.
//
// Callers should compare with errors.Is, since call sites typically wrap
// these with additional context via fmt.Errorf("%w: ...", errs.ErrX, detail).
package errs

import "errors"

var (
	// ErrNonFiniteSample is returned when a raw input sample is NaN or Inf.
	ErrNonFiniteSample = errors.New("some samples are not finite")

	// ErrTooManySamples is returned when a track array has more than 65535 samples.
	ErrTooManySamples = errors.New("too many samples")

	// ErrTooManyTracks is returned when a track array has more than 2^31 tracks.
	ErrTooManyTracks = errors.New("too many tracks")

	// ErrTooManySegments is returned when the segmenter would produce more than 2^16 segments.
	ErrTooManySegments = errors.New("too many segments")

	// ErrMismatchedTrackLengths is returned when tracks in an array do not share a sample count,
	// or when a track's parent index is past the end of the array.
	ErrMismatchedTrackLengths = errors.New("mismatched track sample counts or rates")

	// ErrEmptyTrackArray is returned when compression is attempted on zero tracks.
	ErrEmptyTrackArray = errors.New("track array is empty")

	// ErrInvalidSettings is returned when a settings combination is not supported.
	ErrInvalidSettings = errors.New("invalid settings")

	// ErrNonUnitQuaternion is returned when a rotation sample is not unit-length beyond tolerance.
	ErrNonUnitQuaternion = errors.New("non-unit quaternion detected")

	// ErrInvalidStageTransition is returned when a clip context stage method is called out of order.
	ErrInvalidStageTransition = errors.New("invalid clip context stage transition")

	// ErrInvalidHeaderSize is returned when a header byte slice is shorter than the expected size.
	ErrInvalidHeaderSize = errors.New("invalid header size")

	// ErrInvalidMagic is returned when the tracks header tag does not match the expected constant.
	ErrInvalidMagic = errors.New("invalid magic tag")

	// ErrUnsupportedVersion is returned when the blob version is newer than the decoder supports.
	ErrUnsupportedVersion = errors.New("unsupported blob version")

	// ErrMisaligned is returned when a section offset violates the format's alignment contract.
	ErrMisaligned = errors.New("misaligned section offset")

	// ErrHashMismatch is returned by IsValid(checkHash=true) when the stored hash does not match.
	ErrHashMismatch = errors.New("hash mismatch")

	// ErrNotSeeked is returned when Decompress* is called before Seek.
	ErrNotSeeked = errors.New("decompression context has not been seeked")

	// ErrTrackIndexOutOfRange is returned when DecompressTrack is given an out-of-range index.
	ErrTrackIndexOutOfRange = errors.New("track index out of range")
)
