// Package textdupe detects near-duplicate text via 64-bit SimHash
// fingerprints. The session's full-text dump uses it to decide whether the
// live DOM text and the extractor's view are the same content.
package textdupe

import (
	"hash/fnv"
	"math/bits"
	"strings"
)

// Fingerprint computes a 64-bit SimHash of the given text.
// Word tokens are hashed with FNV-64a and accumulated into a bit vector;
// the sign of each lane becomes one fingerprint bit.
func Fingerprint(text string) uint64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}

	var vector [64]int

	for _, word := range words {
		h := fnv.New64a()
		h.Write([]byte(strings.ToLower(word)))
		sum := h.Sum64()

		for i := 0; i < 64; i++ {
			if sum&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fp uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// NearDuplicate reports whether two texts fingerprint within threshold bits
// of each other. Two empty texts are duplicates; one empty text is not a
// duplicate of a non-empty one.
func NearDuplicate(a, b string, threshold int) bool {
	fa, fb := Fingerprint(a), Fingerprint(b)
	if fa == 0 || fb == 0 {
		return fa == fb
	}
	return Distance(fa, fb) <= threshold
}
