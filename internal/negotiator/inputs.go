package negotiator

import (
	"strings"

	"github.com/maltedev/regional-product-extractor/internal/models"
)

// canonicalInputs is what gets typed into a storefront's location box for a
// delivery location.
var canonicalInputs = map[string]string{
	"united states":        "10001",
	"united kingdom":       "SW1A 1AA",
	"germany":              "10115",
	"egypt":                "Cairo",
	"saudi arabia":         "Riyadh",
	"united arab emirates": "Dubai",
	"turkey":               "34000",
}

func CanonicalInput(location string) string {
	return canonicalInputs[strings.ToLower(strings.TrimSpace(location))]
}

// Matches reports whether indicator text names the target delivery location.
func Matches(observed string, target models.RegionConfig) bool {
	text := strings.ToLower(observed)
	if text == "" {
		return false
	}

	candidates := append([]string{target.DeliveryLocation}, target.Aliases...)
	if in := CanonicalInput(target.DeliveryLocation); in != "" {
		candidates = append(candidates, in)
	}
	for _, c := range candidates {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" && strings.Contains(text, c) {
			return true
		}
	}
	return false
}
