// Package simhash fingerprints product titles so near-identical listings
// (the same item relisted with a reordered or slightly reworded title) can
// be recognized without another relevance call.
package simhash

import (
	"hash/fnv"
	"math/bits"
	"strings"
	"unicode"
)

// DefaultThreshold is the Hamming distance at or below which two title
// fingerprints are treated as the same listing.
const DefaultThreshold = 3

// Fingerprint returns the 64-bit SimHash of the word tokens in text.
// Empty text fingerprints to 0.
func Fingerprint(text string) uint64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}

	var weights [64]int
	for _, w := range words {
		h := fnv.New64a()
		_, _ = h.Write([]byte(w))
		sum := h.Sum64()
		for bit := range 64 {
			if sum&(1<<uint(bit)) != 0 {
				weights[bit]++
			} else {
				weights[bit]--
			}
		}
	}

	var fp uint64
	for bit, w := range weights {
		if w > 0 {
			fp |= 1 << uint(bit)
		}
	}
	return fp
}

// Title fingerprints a product title after case folding and punctuation
// removal, so "Dettol Wipes, 80 Count" and "dettol wipes 80 count" agree.
func Title(title string) uint64 {
	return Fingerprint(normalize(title))
}

func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return b.String()
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar reports whether a and b are within threshold bits of each other.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}

// Set remembers fingerprints seen during one scrape call. Not safe for
// concurrent use.
type Set struct {
	threshold int
	seen      []uint64
}

// NewSet returns an empty Set matching within threshold bits.
func NewSet(threshold int) *Set {
	return &Set{threshold: threshold}
}

// Contains reports whether a fingerprint similar to fp was added.
func (s *Set) Contains(fp uint64) bool {
	if fp == 0 {
		return false
	}
	for _, prev := range s.seen {
		if Similar(prev, fp, s.threshold) {
			return true
		}
	}
	return false
}

// Add records fp. Zero fingerprints are ignored.
func (s *Set) Add(fp uint64) {
	if fp != 0 {
		s.seen = append(s.seen, fp)
	}
}
