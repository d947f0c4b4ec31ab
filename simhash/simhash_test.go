package simhash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	assert.Zero(t, Fingerprint(""))
	assert.Zero(t, Fingerprint("   "))
	assert.NotZero(t, Fingerprint("wipes"))
	assert.Equal(t, Fingerprint("glass cleaner 500 ml"), Fingerprint("glass cleaner 500 ml"))
}

func TestTitle_IgnoresCaseAndPunctuation(t *testing.T) {
	a := Title("Dettol Antibacterial Wipes, 80 Count")
	b := Title("dettol antibacterial wipes 80 count")
	assert.Equal(t, a, b)
}

func TestDistance(t *testing.T) {
	near := Distance(
		Title("Clorox Disinfecting Wipes Lemon Fresh 75 Count Pack of 3"),
		Title("Clorox Disinfecting Wipes Lemon Fresh 75 Count Pack of 3 New"),
	)
	far := Distance(
		Title("Clorox Disinfecting Wipes Lemon Fresh 75 Count"),
		Title("Turtle Wax Hybrid Solutions Ceramic Spray Coating 473 ml"),
	)
	assert.Less(t, near, far)
	assert.GreaterOrEqual(t, far, 5)
	assert.Equal(t, 0, Distance(42, 42))
	assert.Equal(t, 64, Distance(0, ^uint64(0)))
}

func TestSet(t *testing.T) {
	s := NewSet(DefaultThreshold)
	fp := Title("Harpic Power Plus Toilet Cleaner 1 L")

	assert.False(t, s.Contains(fp))
	s.Add(fp)
	assert.True(t, s.Contains(fp))
	assert.True(t, s.Contains(Title("HARPIC power plus toilet cleaner, 1 L")))
	assert.False(t, s.Contains(Title("Dettol Antiseptic Liquid 500 ml")))

	s.Add(0)
	assert.False(t, s.Contains(0), "empty titles never match")
}
