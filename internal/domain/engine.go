package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Notes attached to a result when a default stands in for missing data.
const (
	NoteWaterTempEstimated = "No water temperature provided; estimated from air temp (72h)."
	NoteWaterTempMissing   = "No water temperature available; using neutral 0.5 for temperature."
	NoteRiverFlowDefault   = "River flow/median not provided; using neutral 0.5 for debit."
	NoteTideSwellMissing   = "Tide/swell not implemented; consider adding a tide provider."
	noteUnknownSpecies     = "Unknown species %q; using %s temperature profile."
)

// Breakdown holds every intermediate score of one evaluation.
type Breakdown struct {
	Species Species
	Context WaterContext
	Hour    int

	Dimensions map[Dimension]float64

	Water      float64
	Weather    float64
	Conditions float64
	Time       float64
	Habitat    float64
	Score      int

	Inputs InputsUsed
	Notes  []string
}

// Engine evaluates fishability. It holds only its configuration, so one
// Engine may be shared by concurrent callers.
type Engine struct {
	cfg ScoringConfig
}

// NewEngine returns an Engine for cfg. Callers are expected to have run
// cfg.Validate.
func NewEngine(cfg ScoringConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns the engine's scoring tables.
func (e *Engine) Config() ScoringConfig { return e.cfg }

// Score evaluates item at the resolved time using the given feature bundle.
func (e *Engine) Score(item ScoreItem, at time.Time, f FeatureBundle) (ScoreResult, error) {
	b, err := e.Evaluate(item, at, f)
	if err != nil {
		return ScoreResult{}, err
	}
	lat, lon := item.Coords()
	return ScoreResult{
		Lat:     lat,
		Lon:     lon,
		Time:    at.Truncate(time.Second).Format(time.RFC3339),
		Species: echoSpecies(item.Species, b.Species),
		Context: b.Context,
		Score:   b.Score,
		SubScores: SubScores{
			Water:   round3(b.Water),
			Weather: round3(b.Weather),
			Time:    round3(b.Time),
			Habitat: round3(b.Habitat),
		},
		Dimensions: b.Dimensions,
		InputsUsed: b.Inputs,
		Notes:      b.Notes,
	}, nil
}

// Evaluate runs every scorer and the aggregator, returning the full
// breakdown. It has no side effects.
func (e *Engine) Evaluate(item ScoreItem, at time.Time, f FeatureBundle) (Breakdown, error) {
	cfg := e.cfg

	ctx, err := ParseContext(item.Context)
	if err != nil {
		return Breakdown{}, err
	}
	species, knownSpecies := ParseSpecies(item.Species)
	// Crepuscular timing reads the UTC hour; the sun-high window reads the
	// hour as written in the request.
	hour := at.UTC().Hour()
	localHour := at.Hour()

	b := Breakdown{
		Species:    species,
		Context:    ctx,
		Hour:       hour,
		Dimensions: make(map[Dimension]float64),
		Notes:      []string{},
	}
	if !knownSpecies {
		b.Notes = append(b.Notes, fmt.Sprintf(noteUnknownSpecies, item.Species, FallbackSpecies))
	}

	// Water.
	waterTemp := KnownPtr(item.WaterTemp)
	if !waterTemp.IsKnown() {
		waterTemp = f.WaterTemp
		if waterTemp.IsKnown() {
			b.Notes = append(b.Notes, NoteWaterTempEstimated)
		} else {
			b.Notes = append(b.Notes, NoteWaterTempMissing)
		}
	}
	turbidity := Clamp01(KnownPtr(item.Turbidity).Or(cfg.Defaults.Turbidity))
	flow, flowMedian := KnownPtr(item.Flow), KnownPtr(item.FlowMedian)

	water := Scores{
		DimTemp:      Known(WaterTempScore(cfg, waterTemp, species)),
		DimTurbidity: Known(turbidity),
	}
	if ctx == ContextRiver {
		water[DimDebit] = Known(RiverFlowScore(cfg, flow, flowMedian))
		if !flow.IsKnown() || !flowMedian.IsKnown() {
			b.Notes = append(b.Notes, NoteRiverFlowDefault)
		}
	}
	b.Water = Combine(cfg.WaterWeightsFor(ctx), water)

	// Weather.
	sunHigh := SunHigh(cfg, f.IsDay, localHour)
	shore := KnownPtr(item.ShoreAzimuth).Or(cfg.Defaults.ShoreAzimuth)
	weather := Scores{
		DimPressure:  Known(PressureTrendScore(cfg, f.PressureTrend)),
		DimWind:      Known(WindSpeedScore(cfg, f.WindSpeed)),
		DimAlignment: Known(WindAlignmentScore(f.WindDirection, Known(shore))),
		DimCloud:     Known(CloudScore(cfg, f.CloudCover, sunHigh)),
		DimRain:      Known(PrecipScore(cfg, f.Rain6h)),
		DimTide:      Unknown(),
		DimSwell:     Unknown(),
	}
	if ctx == ContextSea {
		b.Notes = append(b.Notes, NoteTideSwellMissing)
	}
	b.Weather = Combine(cfg.WeatherWeightsFor(ctx), weather)

	// Time.
	timeScores := Scores{
		DimCrepuscular: Known(CrepuscularScore(cfg, hour)),
		DimLunar:       Known(cfg.Defaults.Lunar),
	}
	b.Time = Clamp01(Combine(cfg.TimeWeights, timeScores))

	// Aggregate.
	b.Habitat = Clamp01(KnownPtr(item.Habitat).Or(cfg.Defaults.Habitat))
	b.Conditions = Combine(cfg.ConditionsWeights, Scores{
		DimWater:   Known(b.Water),
		DimWeather: Known(b.Weather),
	})

	raw := 100 *
		math.Pow(b.Habitat, cfg.Exponents.Habitat) *
		math.Pow(b.Conditions, cfg.Exponents.Conditions) *
		math.Pow(b.Time, cfg.Exponents.Time)
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return Breakdown{}, errors.New("aggregate score is not finite")
	}
	b.Score = int(math.RoundToEven(min(100, max(0, raw))))

	for _, scores := range []Scores{water, weather, timeScores} {
		for d, r := range scores {
			if v, ok := r.Value(); ok {
				b.Dimensions[d] = v
			}
		}
	}

	b.Inputs = InputsUsed{
		WaterTemp:     waterTemp,
		PressureTrend: f.PressureTrend,
		WindSpeed:     f.WindSpeed,
		WindDirection: f.WindDirection,
		CloudCover:    f.CloudCover,
		Rain6h:        f.Rain6h,
		SunHigh:       sunHigh,
		Turbidity:     turbidity,
		Flow:          flow,
		FlowMedian:    flowMedian,
		ShoreAzimuth:  shore,
		Habitat:       b.Habitat,
	}
	return b, nil
}

// echoSpecies reports the caller's species tag so results stay traceable;
// the profile actually used is named in the fallback note.
func echoSpecies(tag string, resolved Species) Species {
	if t := strings.TrimSpace(tag); t != "" {
		if s, ok := ParseSpecies(t); ok {
			return s
		}
		return Species(t)
	}
	return resolved
}

func round3(v float64) float64 {
	return math.RoundToEven(v*1000) / 1000
}
