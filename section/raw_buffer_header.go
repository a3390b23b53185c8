package section

import (
	"github.com/animblob/animblob/endian"
	"github.com/animblob/animblob/errs"
)

// RawBufferHeaderSize is the fixed byte size of RawBufferHeader.
const RawBufferHeaderSize = 8

// RawBufferHeader is the outermost 8-byte header of a compressed tracks
// blob: total size and the integrity hash of everything after it. Mirrors
// the teacher's fixed 8-byte prefix pattern in section/numeric_header.go,
// specialized to spec.md §3 item 1.
type RawBufferHeader struct {
	// Size is the total byte length of the blob, including this header.
	Size uint32
	// Hash is FNV1a32 of every byte following this header.
	Hash uint32
}

// Bytes serializes h into an 8-byte little-endian slice.
func (h RawBufferHeader) Bytes() []byte {
	b := make([]byte, RawBufferHeaderSize)
	engine := endian.GetLittleEndianEngine()
	engine.PutUint32(b[0:4], h.Size)
	engine.PutUint32(b[4:8], h.Hash)

	return b
}

// ParseRawBufferHeader parses the first 8 bytes of a blob.
func ParseRawBufferHeader(data []byte) (RawBufferHeader, error) {
	if len(data) < RawBufferHeaderSize {
		return RawBufferHeader{}, errs.ErrInvalidHeaderSize
	}

	engine := endian.GetLittleEndianEngine()

	return RawBufferHeader{
		Size: engine.Uint32(data[0:4]),
		Hash: engine.Uint32(data[4:8]),
	}, nil
}
