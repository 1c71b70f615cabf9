package domain

import (
	"fmt"
	"strings"
)

// Species identifies a target fish. The set is closed; tags outside it are
// scored with the fallback profile and reported in the result notes.
type Species string

const (
	SpeciesTrout   Species = "trout"
	SpeciesPike    Species = "pike"
	SpeciesZander  Species = "zander"
	SpeciesCarp    Species = "carp"
	SpeciesCatfish Species = "catfish"
)

// FallbackSpecies is used for empty or unrecognized species tags.
const FallbackSpecies = SpeciesCarp

// AllSpecies lists the known species in table order.
var AllSpecies = []Species{SpeciesTrout, SpeciesPike, SpeciesZander, SpeciesCarp, SpeciesCatfish}

// ParseSpecies normalizes a species tag. The second return value is false
// when the tag is not a known species, in which case FallbackSpecies is
// returned. An empty tag maps to the fallback and counts as known.
func ParseSpecies(tag string) (Species, bool) {
	s := Species(strings.ToLower(strings.TrimSpace(tag)))
	if s == "" {
		return FallbackSpecies, true
	}
	for _, known := range AllSpecies {
		if s == known {
			return s, true
		}
	}
	return FallbackSpecies, false
}

// WaterContext is the kind of water body being fished.
type WaterContext string

const (
	ContextLake  WaterContext = "lake"
	ContextRiver WaterContext = "river"
	ContextSea   WaterContext = "sea"
)

// ParseContext normalizes a context tag. Empty means lake.
func ParseContext(tag string) (WaterContext, error) {
	switch c := WaterContext(strings.ToLower(strings.TrimSpace(tag))); c {
	case "":
		return ContextLake, nil
	case ContextLake, ContextRiver, ContextSea:
		return c, nil
	default:
		return "", fmt.Errorf("%w: context %q must be one of lake, river, sea", ErrInvalidItem, tag)
	}
}

// Dimension names a scored axis inside a combiner weight table.
type Dimension string

// Water composite dimensions.
const (
	DimTemp      Dimension = "temp"
	DimTurbidity Dimension = "turbidity"
	DimDebit     Dimension = "debit"
)

// Weather composite dimensions.
const (
	DimPressure  Dimension = "press"
	DimWind      Dimension = "wind"
	DimAlignment Dimension = "align"
	DimCloud     Dimension = "cloud"
	DimRain      Dimension = "rain"
	DimTide      Dimension = "tide"
	DimSwell     Dimension = "swell"
)

// Time composite dimensions.
const (
	DimCrepuscular Dimension = "crepuscul"
	DimLunar       Dimension = "luna"
)

// Conditions composite dimensions.
const (
	DimWater   Dimension = "water"
	DimWeather Dimension = "weather"
)
