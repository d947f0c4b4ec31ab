package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	priceRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

	packageVolumeRe = regexp.MustCompile(`(?i)(\d+[.,]?\d*)\s*(ml|l)`)
	packageTimesRe  = regexp.MustCompile(`(?i)x\s*(\d+)`)
	packagePcsRe    = regexp.MustCompile(`\((\d+)\s*pcs\)`)
	packagePackRe   = regexp.MustCompile(`(\d+)-pack\s*x\s*(\d+)`)
)

// ParsePrice returns the first decimal number in text after removing
// thousands separators.
func ParsePrice(text string) (float64, bool) {
	clean := strings.ReplaceAll(text, ",", "")
	m := priceRe.FindString(clean)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// JoinPrice assembles a price rendered as separate whole and fraction parts
// ("1,299." and "50").
func JoinPrice(whole, fraction string) (float64, bool) {
	w := strings.TrimRight(strings.ReplaceAll(strings.TrimSpace(whole), ",", ""), ".")
	if w == "" {
		return 0, false
	}
	if f := strings.TrimSpace(fraction); f != "" {
		w += "." + f
	}
	return ParsePrice(w)
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ParsePackageVolumeML reads a package label like "500 ml x 6" or "1,5 L"
// and returns the total volume in milliliters.
func ParsePackageVolumeML(text string) (float64, bool) {
	m := packageVolumeRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	base, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0, false
	}
	if strings.EqualFold(m[2], "l") {
		base *= 1000
	}
	if t := packageTimesRe.FindStringSubmatch(text); t != nil {
		if n, err := strconv.Atoi(t[1]); err == nil {
			base *= float64(n)
		}
	}
	return base, true
}

// ParsePackageUnits reads "(50 pcs)" or "10-pack x 20" package labels.
func ParsePackageUnits(text string) (int, bool) {
	if m := packagePcsRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		return n, err == nil
	}
	if m := packagePackRe.FindStringSubmatch(text); m != nil {
		a, err1 := strconv.Atoi(m[1])
		b, err2 := strconv.Atoi(m[2])
		if err1 == nil && err2 == nil {
			return a * b, true
		}
	}
	return 0, false
}
