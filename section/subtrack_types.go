package section

// PackSubTrackKinds packs a slice of 2-bit kinds into 32-bit little-endian
// words, 16 kinds per word, per spec.md §3 item 6. Callers must concatenate
// slices in the canonical order: rotations, then translations, then scales.
func PackSubTrackKinds(kinds []SubTrackKind) []uint32 {
	numWords := (len(kinds) + 15) / 16
	words := make([]uint32, numWords)

	for i, k := range kinds {
		word := i / 16
		shift := uint((i % 16) * 2)
		words[word] |= uint32(k) << shift
	}

	return words
}

// UnpackSubTrackKind reads the kind at index i from packed 32-bit words.
func UnpackSubTrackKind(words []uint32, i int) SubTrackKind {
	word := i / 16
	shift := uint((i % 16) * 2)

	return SubTrackKind((words[word] >> shift) & 0x3)
}

// SubTrackTypeWordsSize returns the byte size of the packed type map for the
// given per-stream sub-track counts.
func SubTrackTypeWordsSize(rotationCount, translationCount, scaleCount int) int {
	total := rotationCount + translationCount + scaleCount
	numWords := (total + 15) / 16

	return numWords * 4
}
