package bitpack_test

import (
	"testing"

	"github.com/animblob/animblob/bitpack"
	"github.com/stretchr/testify/require"
)

func TestWriterReader_RoundTrip(t *testing.T) {
	w := bitpack.NewWriter()
	defer w.Release()

	values := []struct {
		v uint32
		n int
	}{
		{1, 1},
		{0, 1},
		{0x7F, 7},
		{0xFFFFFFFF, 32},
		{3, 3},
		{19, 5},
		{0, 9},
		{511, 9},
	}

	offsets := make([]int, len(values))
	for i, tc := range values {
		offsets[i] = w.BitOffset()
		w.WriteBits(tc.v, tc.n)
	}

	data := w.Bytes()
	r := bitpack.NewReader(data)

	for i, tc := range values {
		got := r.ReadBits(offsets[i], tc.n)
		mask := uint32((uint64(1) << uint(tc.n)) - 1)
		require.Equal(t, tc.v&mask, got, "value %d", i)
	}
}

func TestWriter_Align(t *testing.T) {
	w := bitpack.NewWriter()
	defer w.Release()

	w.WriteBits(1, 3)
	w.Align()
	require.Equal(t, 0, w.BitOffset()%8)

	w.WriteBits(0xAB, 8)
	data := w.Bytes()
	require.Equal(t, byte(0xAB), data[1])
}

func TestReader_ReadBitsUnaligned64(t *testing.T) {
	w := bitpack.NewWriter()
	defer w.Release()

	w.WriteBits(5, 3)
	w.WriteBits(0x1FF, 9)
	w.WriteBits(1, 1)

	data := w.Bytes()
	r := bitpack.NewReader(data)

	got := r.ReadBitsUnaligned64(0, 3)
	require.Equal(t, uint64(5), got)

	got2 := r.ReadBitsUnaligned64(3, 9)
	require.Equal(t, uint64(0x1FF), got2)

	got3 := r.ReadBitsUnaligned64(12, 1)
	require.Equal(t, uint64(1), got3)
}

func TestWriter_SpanningMultipleBytes(t *testing.T) {
	w := bitpack.NewWriter()
	defer w.Release()

	w.WriteBits(0x3FFFFFFF, 30)
	w.WriteBits(0x2A, 6)

	data := w.Bytes()
	r := bitpack.NewReader(data)

	require.Equal(t, uint32(0x3FFFFFFF), r.ReadBits(0, 30))
	require.Equal(t, uint32(0x2A), r.ReadBits(30, 6))
}
