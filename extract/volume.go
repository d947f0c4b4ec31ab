// Package extract parses prices and quantities out of free-form product text.
//
// Every parser returns (measurement, ok). ok == false means the text carries
// no recognizable quantity, which callers treat as "unknown" rather than as
// an error.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/use-agent/pricecrawl/models"
)

// FlOzToML is the fluid-ounce conversion factor.
const FlOzToML = 29.5735

var (
	volumeRe = regexp.MustCompile(`(?i)(\d+\.?\d*)\s*(ltr|ml|l|g|kg|liter|litre|liters|milliliters|grams|kilograms|oz|ounce|fl\s?oz|fluid\sounces?)\b`)

	// "(12 Bottles x 500 ml)" style bundles.
	parenBundleRe = regexp.MustCompile(`(?i)\((\d+\.?\d*)\s+.*?\s*[xX]\s*(\d+\.?\d*)\s*(ltr|ml|l|liter|litre|liters|milliliters)\b.*\)`)

	// "6 Pcs x 750 ml" style bundles.
	pcsBundleRe = regexp.MustCompile(`(?i)(\d+)\s*Pcs\s*[xX]\s*(\d+\.?\d*)\s*(ltr|ml|l|liter|litre|liters|milliliters)\b`)

	leadingTimesRe = regexp.MustCompile(`(?i)(\d+)\s*[xX]`)
)

// ParseVolume finds the first quantity-unit pair in text and normalizes it.
// Liters and kilograms scale by 1000, fluid ounces by FlOzToML.
func ParseVolume(text string) (models.QuantityMeasurement, bool) {
	if text == "" {
		return models.QuantityMeasurement{}, false
	}
	m := volumeRe.FindStringSubmatch(text)
	if m == nil {
		return models.QuantityMeasurement{}, false
	}
	q, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return models.QuantityMeasurement{}, false
	}
	return measure(text, q, m[2]), true
}

// ParseVolumeWithMultiplier is ParseVolume aware of bundle notation:
// "(A … x B unit)", "N Pcs x B unit" and a leading "N x". The bundle total
// replaces the quantity and scales the normalized value.
func ParseVolumeWithMultiplier(text string) (models.QuantityMeasurement, bool) {
	if text == "" {
		return models.QuantityMeasurement{}, false
	}

	for _, re := range []*regexp.Regexp{parenBundleRe, pcsBundleRe} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		multiplier, err1 := strconv.ParseFloat(m[1], 64)
		base, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		return measure(text, multiplier*base, m[3]), true
	}

	vol, ok := ParseVolume(text)
	if !ok {
		return models.QuantityMeasurement{}, false
	}

	multiplier := 1
	if m := leadingTimesRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			multiplier = n
		}
	}
	vol.Quantity *= float64(multiplier)
	vol.Normalized *= float64(multiplier)
	return vol, true
}

// measure builds a measurement for quantity q expressed in the raw unit token.
func measure(raw string, q float64, token string) models.QuantityMeasurement {
	unit, factor := unitFor(token)
	return models.QuantityMeasurement{
		RawText:    raw,
		Quantity:   q,
		Unit:       unit,
		Normalized: q * factor,
	}
}

// unitFor maps a matched unit token to its canonical unit and base factor.
func unitFor(token string) (models.Unit, float64) {
	t := strings.ToLower(strings.TrimSpace(token))
	switch {
	case strings.Contains(t, "milliliter") || t == "ml":
		return models.UnitML, 1
	case strings.Contains(t, "liter") || strings.Contains(t, "litre") || t == "l" || t == "ltr":
		return models.UnitL, 1000
	case strings.Contains(t, "kilogram") || t == "kg":
		return models.UnitKG, 1000
	case strings.Contains(t, "gram") || t == "g":
		return models.UnitG, 1
	case strings.Contains(t, "oz") || strings.Contains(t, "ounce"):
		return models.UnitFlOz, FlOzToML
	default:
		return models.Unit(t), 1
	}
}
