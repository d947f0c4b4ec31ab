package extract

import (
	"regexp"
	"strconv"

	"github.com/use-agent/pricecrawl/models"
)

// countPatterns are tried in order; the first match wins.
var countPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+)\s*/\s*(box|pack|count)\b`),
	regexp.MustCompile(`(?i)(\d+)\s*(?:wet\s*)?(wipes|count|sheets|sachets|pack|pcs|pieces|pc)\b`),
	regexp.MustCompile(`(?i)\b(pack|box)\s*of\s*(\d+)`),
	regexp.MustCompile(`(?i)^(\d+)\s*(?:sanitizing\s*)?(wipes|count|sheets|sachets|pack|pcs|pieces|pc)\b`),
}

var (
	dashCountRe  = regexp.MustCompile(`(?i)(\d+)\s*-\s*(piece|wipes|rags)\b`)
	looseCountRe = regexp.MustCompile(`(?i)(\d+)\s*(wipes|count|sheets|sachets|pack|pcs|pieces|pc|s)\b`)
	packOfRe     = regexp.MustCompile(`(?i)\b(?:pack\s+of|of|x)\s*(\d+)\b`)
)

// ParseCount recognizes "N wipes", "N/box", "pack of N" and similar forms.
// The number is taken from whichever capture group holds digits.
func ParseCount(text string) (models.QuantityMeasurement, bool) {
	if text == "" {
		return models.QuantityMeasurement{}, false
	}
	for _, re := range countPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		for _, group := range m[1:] {
			if n, err := strconv.Atoi(group); err == nil {
				return units(text, float64(n)), true
			}
		}
	}
	return models.QuantityMeasurement{}, false
}

// ParseDashCount recognizes catalog notation such as "40-Piece" or "20 - Wipes".
func ParseDashCount(text string) (models.QuantityMeasurement, bool) {
	return firstIntUnits(dashCountRe, text)
}

// ParseLooseCount is a permissive count parser that also accepts a bare "s"
// suffix ("80s"), as used by baby-care catalogs.
func ParseLooseCount(text string) (models.QuantityMeasurement, bool) {
	return firstIntUnits(looseCountRe, text)
}

// PackMultiplier returns N for "pack of N", "x N" or "of N". The marker
// must be a whole word and N must not run into a unit, so "Max 500ml"
// is not a multiplier.
func PackMultiplier(text string) (int, bool) {
	m := packOfRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func firstIntUnits(re *regexp.Regexp, text string) (models.QuantityMeasurement, bool) {
	if text == "" {
		return models.QuantityMeasurement{}, false
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return models.QuantityMeasurement{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return models.QuantityMeasurement{}, false
	}
	return units(text, float64(n)), true
}

func units(raw string, n float64) models.QuantityMeasurement {
	return models.QuantityMeasurement{
		RawText:    raw,
		Quantity:   n,
		Unit:       models.UnitUnits,
		Normalized: n,
	}
}
