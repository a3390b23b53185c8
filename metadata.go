package acl

import (
	"github.com/animblob/animblob/clip"
	"github.com/animblob/animblob/compress"
	"github.com/animblob/animblob/errs"
	"github.com/animblob/animblob/format"
	"github.com/animblob/animblob/section"
)

// Metadata bits packed into the trailer header's own flags byte (distinct
// from section.TracksHeader's Flags bitfield: these only describe which
// optional fields the trailer itself carries).
const (
	metaFlagTrackListName uint8 = 1 << iota
	metaFlagTrackNames
	metaFlagParentIndices
	metaFlagDescriptions
)

// metadataTrailerHeaderSize is the fixed prefix before the (possibly
// compressed) metadata payload: compression type, trailer flags, 2 bytes of
// padding, uncompressed size, compressed size.
const metadataTrailerHeaderSize = 12

// TrackMetadata is the optional, inline side information spec.md §3 item 10
// describes: clip/track names, parent indices, and descriptions. None of it
// is read by the compression pipeline or the sample-time decoder; it exists
// purely for tools that only have the compressed blob and want the
// hierarchy or bone names back out of it.
type TrackMetadata struct {
	ListName      string
	TrackNames    []string
	ParentIndices []int32
	Descriptions  []string
}

// hasMetadata reports whether any optional metadata field was requested.
func hasMetadata(s *clip.Settings) bool {
	return s.IncludeTrackListName || s.IncludeTrackNames || s.IncludeParentTrackIndices || s.IncludeTrackDescriptions
}

// buildMetadataTrailer serializes and compresses ctx's requested metadata
// fields, returning the full trailer (header + compressed payload) to
// append after the core blob body.
func buildMetadataTrailer(ctx *clip.Context) ([]byte, error) {
	s := ctx.Settings

	var flags uint8
	var payload []byte

	if s.IncludeTrackListName {
		flags |= metaFlagTrackListName
		payload = appendString(payload, ctx.Tracks.Name)
	}

	if s.IncludeTrackNames {
		flags |= metaFlagTrackNames
		for _, bs := range ctx.Bones {
			payload = appendString(payload, bs.Desc.Name)
		}
	}

	if s.IncludeParentTrackIndices {
		flags |= metaFlagParentIndices
		for _, bs := range ctx.Bones {
			payload = appendInt32(payload, bs.Desc.ParentIndex)
		}
	}

	if s.IncludeTrackDescriptions {
		flags |= metaFlagDescriptions
		for _, bs := range ctx.Bones {
			payload = appendString(payload, bs.Desc.Description)
		}
	}

	codec, err := compress.CreateCodec(s.MetadataCompression, "metadata-trailer")
	if err != nil {
		return nil, err
	}

	compressed, err := codec.Compress(payload)
	if err != nil {
		return nil, err
	}

	trailer := make([]byte, metadataTrailerHeaderSize+len(compressed))
	trailer[0] = byte(s.MetadataCompression)
	trailer[1] = flags
	putU32(trailer[4:], uint32(len(payload)))
	putU32(trailer[8:], uint32(len(compressed)))
	copy(trailer[metadataTrailerHeaderSize:], compressed)

	return trailer, nil
}

func appendString(buf []byte, s string) []byte {
	n := len(s)
	buf = append(buf, byte(n), byte(n>>8))

	return append(buf, s...)
}

func appendInt32(buf []byte, v int32) []byte {
	u := uint32(v)

	return append(buf, byte(u), byte(u>>8), byte(u>>16), byte(u>>24))
}

// HasMetadata reports whether this blob carries an inline metadata trailer.
func (ct *CompressedTracks) HasMetadata() bool {
	return ct.tracks.Flags&section.FlagHasMetadata != 0
}

// ReadMetadata decompresses and parses the optional metadata trailer. It
// returns (nil, nil) if the blob carries none.
func (ct *CompressedTracks) ReadMetadata() (*TrackMetadata, error) {
	if !ct.HasMetadata() {
		return nil, nil
	}

	start := ct.blobBodyEnd()
	if start+metadataTrailerHeaderSize > len(ct.data) {
		return nil, errs.ErrInvalidHeaderSize
	}

	h := ct.data[start:]
	compType := format.CompressionType(h[0])
	flags := h[1]
	uncompSize := getU32(h[4:])
	compSize := getU32(h[8:])

	end := metadataTrailerHeaderSize + int(compSize)
	if start+end > len(ct.data) {
		return nil, errs.ErrInvalidHeaderSize
	}

	codec, err := compress.CreateCodec(compType, "metadata-trailer")
	if err != nil {
		return nil, err
	}

	payload, err := codec.Decompress(h[metadataTrailerHeaderSize:end])
	if err != nil {
		return nil, err
	}

	if len(payload) != int(uncompSize) {
		return nil, errs.ErrInvalidHeaderSize
	}

	md := &TrackMetadata{}
	off := 0

	readString := func() string {
		n := int(payload[off]) | int(payload[off+1])<<8
		off += 2
		s := string(payload[off : off+n])
		off += n

		return s
	}

	numBones := ct.TrackCount()

	if flags&metaFlagTrackListName != 0 {
		md.ListName = readString()
	}

	if flags&metaFlagTrackNames != 0 {
		md.TrackNames = make([]string, numBones)
		for i := range md.TrackNames {
			md.TrackNames[i] = readString()
		}
	}

	if flags&metaFlagParentIndices != 0 {
		md.ParentIndices = make([]int32, numBones)
		for i := range md.ParentIndices {
			md.ParentIndices[i] = int32(getU32(payload[off:]))
			off += 4
		}
	}

	if flags&metaFlagDescriptions != 0 {
		md.Descriptions = make([]string, numBones)
		for i := range md.Descriptions {
			md.Descriptions[i] = readString()
		}
	}

	return md, nil
}

// blobBodyEnd returns the absolute byte offset where the core blob body
// (everything the compression pipeline and decoder read) ends and the
// trailing pad or metadata trailer begins. Segment data is laid out
// back-to-back with no gaps, so the last segment's own size determines it;
// every segment shares the same animated sub-track set (classification is
// decided clip-wide, not per segment), so the per-stream animated counts
// resolved once in MakeCompressedTracks apply to every segment equally.
func (ct *CompressedTracks) blobBodyEnd() int {
	last := ct.segmentHeader(int(ct.tt.SegmentCount) - 1)

	formatBytes := ct.streams[0].numAnimated + ct.streams[1].numAnimated + ct.streams[2].numAnimated

	rangeBytes := 0
	for _, sl := range ct.streams {
		rangeBytes += sl.numAnimated * sl.components * 2
	}

	streamBytes := (int(last.AnimatedBitCount)*int(last.SampleCount) + 7) / 8

	return ct.ttOff + int(last.DataOffset) + formatBytes + rangeBytes + streamBytes
}
