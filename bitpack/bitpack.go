// Package bitpack implements the fixed-width variable-bit-rate I/O the
// animated stream is packed with: writing/reading 1..32 bits at an arbitrary
// bit offset, stitched across byte boundaries exactly like the teacher's
// Gorilla bit buffer (internal/encoding/numeric_gorilla.go), generalized
// from that format's variable-length blocks to this codec's fixed-width
// ladder.
package bitpack

import "github.com/animblob/animblob/internal/pool"

// Writer accumulates bits MSB-first into a growable byte buffer, matching
// the teacher's bitBuf/bitCount accumulator style.
type Writer struct {
	buf      *pool.ByteBuffer
	bitBuf   uint64
	bitCount int // valid bits currently held in bitBuf, 0..63
}

// NewWriter returns a Writer backed by a pooled byte buffer.
func NewWriter() *Writer {
	return &Writer{buf: pool.GetBlobBuffer()}
}

// BitOffset returns the number of bits written so far.
func (w *Writer) BitOffset() int {
	return w.buf.Len()*8 + w.bitCount
}

// WriteBits writes the low numBits bits of value (0 <= numBits <= 32).
func (w *Writer) WriteBits(value uint32, numBits int) {
	if numBits == 0 {
		return
	}

	v := uint64(value)
	if numBits < 64 {
		v &= (1 << uint(numBits)) - 1
	}

	available := 64 - w.bitCount
	if numBits <= available {
		w.bitBuf = (w.bitBuf << uint(numBits)) | v
		w.bitCount += numBits
		w.flushWholeBytes()

		return
	}

	high := numBits - available
	w.bitBuf = (w.bitBuf << uint(available)) | (v >> uint(high))
	w.bitCount = 64
	w.flushWholeBytes()

	w.bitBuf = v & ((1 << uint(high)) - 1)
	w.bitCount = high
}

// flushWholeBytes drains complete bytes from the bit buffer into the byte
// buffer, keeping any remaining partial byte resident.
func (w *Writer) flushWholeBytes() {
	for w.bitCount >= 8 {
		shift := uint(w.bitCount - 8)
		b := byte(w.bitBuf >> shift)
		w.buf.B = append(w.buf.B, b)
		w.bitCount -= 8
	}
}

// Align pads with zero bits up to the next byte boundary.
func (w *Writer) Align() {
	if w.bitCount == 0 {
		return
	}

	pad := 8 - w.bitCount
	w.WriteBits(0, pad)
}

// Bytes flushes any pending partial byte (zero-padded) and returns the
// accumulated buffer. The returned slice is only valid until the Writer is
// reused or released.
func (w *Writer) Bytes() []byte {
	if w.bitCount > 0 {
		b := byte(w.bitBuf << uint(8-w.bitCount))
		w.buf.B = append(w.buf.B, b)
		w.bitCount = 0
		w.bitBuf = 0
	}

	return w.buf.Bytes()
}

// Release returns the Writer's backing buffer to the pool. The Writer must
// not be used afterward.
func (w *Writer) Release() {
	pool.PutBlobBuffer(w.buf)
	w.buf = nil
}

// Reader reads fixed-width bit fields from a byte slice starting at an
// arbitrary bit offset, the mirror image of Writer.
type Reader struct {
	data []byte
}

// NewReader wraps data for bit-addressed reads. data is borrowed, not
// copied, matching the decoder's no-allocation contract (spec.md §4.9).
func NewReader(data []byte) Reader {
	return Reader{data: data}
}

// ReadBits reads numBits bits (0 <= numBits <= 32) starting at bitOffset.
func (r Reader) ReadBits(bitOffset, numBits int) uint32 {
	if numBits == 0 {
		return 0
	}

	var result uint64
	remaining := numBits
	bitPos := bitOffset

	for remaining > 0 {
		byteIdx := bitPos >> 3
		bitInByte := bitPos & 7
		availableInByte := 8 - bitInByte

		take := remaining
		if take > availableInByte {
			take = availableInByte
		}

		b := r.data[byteIdx]
		shift := availableInByte - take
		mask := byte((1 << uint(take)) - 1)
		chunk := (b >> uint(shift)) & mask

		result = (result << uint(take)) | uint64(chunk)

		bitPos += take
		remaining -= take
	}

	return uint32(result)
}

// ReadBitsUnaligned64 reads up to 57 bits spanning at most 8 bytes in one
// shot, matching the primitive spec.md's DESIGN NOTES describes for fast
// unpacking of several adjacent narrow fields at once. Bit order matches
// ReadBits (MSB-first within each byte, bytes in stream order).
func (r Reader) ReadBitsUnaligned64(bitOffset, numBits int) uint64 {
	if numBits == 0 {
		return 0
	}

	var result uint64
	remaining := numBits
	bitPos := bitOffset

	for remaining > 0 {
		byteIdx := bitPos >> 3
		bitInByte := bitPos & 7
		availableInByte := 8 - bitInByte

		take := remaining
		if take > availableInByte {
			take = availableInByte
		}

		b := r.data[byteIdx]
		shift := availableInByte - take
		mask := byte((1 << uint(take)) - 1)
		chunk := (b >> uint(shift)) & mask

		result = (result << uint(take)) | uint64(chunk)

		bitPos += take
		remaining -= take
	}

	return result
}
