package domain

import (
	"errors"
	"fmt"
	"sort"
)

// TempProfile is a species' water temperature preference in °C.
type TempProfile struct {
	Optimum float64 `yaml:"optimum" json:"optimum"`
	TolLow  float64 `yaml:"tol_low" json:"tol_low"`
	TolHigh float64 `yaml:"tol_high" json:"tol_high"`
}

// Triangle holds the corners of a triangular membership function.
type Triangle struct {
	Left  float64 `yaml:"left" json:"left"`
	Peak  float64 `yaml:"peak" json:"peak"`
	Right float64 `yaml:"right" json:"right"`
}

// PrecipStep maps 6-hour rainfall up to and including MaxMM to Score.
type PrecipStep struct {
	MaxMM float64 `yaml:"max_mm" json:"max_mm"`
	Score float64 `yaml:"score" json:"score"`
}

// PressureParams shapes the Gaussian decay around a steady barometer.
type PressureParams struct {
	Scale   float64 `yaml:"scale" json:"scale"` // hPa/h
	Default float64 `yaml:"default" json:"default"`
}

// WindParams shapes the wind speed membership.
type WindParams struct {
	Speed   Triangle `yaml:"speed" json:"speed"` // m/s
	Default float64  `yaml:"default" json:"default"`
}

// CloudParams holds day and night cloud cover memberships and the hour
// window used as the "sun high" fallback when the day flag is unknown.
type CloudParams struct {
	Day          Triangle `yaml:"day" json:"day"`
	Night        Triangle `yaml:"night" json:"night"`
	Default      float64  `yaml:"default" json:"default"`
	SunHighStart int      `yaml:"sun_high_start" json:"sun_high_start"`
	SunHighEnd   int      `yaml:"sun_high_end" json:"sun_high_end"`
}

// PrecipParams holds the rainfall step table. Amounts beyond the last step
// score Above.
type PrecipParams struct {
	Steps   []PrecipStep `yaml:"steps" json:"steps"`
	Above   float64      `yaml:"above" json:"above"`
	Default float64      `yaml:"default" json:"default"`
}

// FlowParams shapes the river discharge ratio decay.
type FlowParams struct {
	Scale   float64 `yaml:"scale" json:"scale"`
	Default float64 `yaml:"default" json:"default"`
}

// CrepuscularParams places the dawn/dusk activity peaks.
type CrepuscularParams struct {
	PeakHours []float64 `yaml:"peak_hours" json:"peak_hours"`
	Slope     float64   `yaml:"slope" json:"slope"` // score lost per hour away from a peak
}

// Defaults are substituted for optional request fields.
type Defaults struct {
	Habitat      float64 `yaml:"habitat" json:"habitat"`
	Turbidity    float64 `yaml:"turbidity" json:"turbidity"`
	ShoreAzimuth float64 `yaml:"shore_azimuth" json:"shore_azimuth"`
	Lunar        float64 `yaml:"lunar" json:"lunar"`
}

// Exponents weight the top-level dimensions in the final product.
type Exponents struct {
	Habitat    float64 `yaml:"habitat" json:"habitat"`
	Conditions float64 `yaml:"conditions" json:"conditions"`
	Time       float64 `yaml:"time" json:"time"`
}

// ScoringConfig carries every tunable of the engine. It is passed explicitly
// to the Engine; nothing in the scoring math reads package-level defaults.
type ScoringConfig struct {
	Species           map[Species]TempProfile  `yaml:"species" json:"species"`
	WaterWeights      map[WaterContext]Weights `yaml:"water_weights" json:"water_weights"`
	WeatherWeights    map[WaterContext]Weights `yaml:"weather_weights" json:"weather_weights"`
	ConditionsWeights Weights                  `yaml:"conditions_weights" json:"conditions_weights"`
	TimeWeights       Weights                  `yaml:"time_weights" json:"time_weights"`

	Pressure    PressureParams    `yaml:"pressure" json:"pressure"`
	Wind        WindParams        `yaml:"wind" json:"wind"`
	Cloud       CloudParams       `yaml:"cloud" json:"cloud"`
	Precip      PrecipParams      `yaml:"precip" json:"precip"`
	Flow        FlowParams        `yaml:"flow" json:"flow"`
	Crepuscular CrepuscularParams `yaml:"crepuscular" json:"crepuscular"`
	Defaults    Defaults          `yaml:"defaults" json:"defaults"`
	Exponents   Exponents         `yaml:"exponents" json:"exponents"`
}

// DefaultScoringConfig returns the built-in tables.
func DefaultScoringConfig() ScoringConfig {
	lakeWater := Weights{DimTemp: 0.7, DimTurbidity: 0.3}
	inlandWeather := Weights{DimPressure: 0.35, DimWind: 0.35, DimAlignment: 0.15, DimCloud: 0.10, DimRain: 0.05}

	return ScoringConfig{
		Species: map[Species]TempProfile{
			SpeciesTrout:   {Optimum: 12, TolLow: 6, TolHigh: 6},
			SpeciesPike:    {Optimum: 14, TolLow: 6, TolHigh: 6},
			SpeciesZander:  {Optimum: 15, TolLow: 6, TolHigh: 6},
			SpeciesCarp:    {Optimum: 23, TolLow: 6, TolHigh: 5},
			SpeciesCatfish: {Optimum: 25, TolLow: 6, TolHigh: 5},
		},
		WaterWeights: map[WaterContext]Weights{
			ContextLake:  lakeWater,
			ContextRiver: {DimTemp: 0.5, DimTurbidity: 0.2, DimDebit: 0.3},
			ContextSea:   lakeWater.Clone(),
		},
		WeatherWeights: map[WaterContext]Weights{
			ContextLake:  inlandWeather,
			ContextRiver: inlandWeather.Clone(),
			ContextSea: {
				DimPressure: 0.20, DimWind: 0.25, DimAlignment: 0.15, DimCloud: 0.10, DimRain: 0.05,
				DimTide: 0.15, DimSwell: 0.10,
			},
		},
		ConditionsWeights: Weights{DimWater: 0.6, DimWeather: 0.4},
		TimeWeights:       Weights{DimCrepuscular: 0.7, DimLunar: 0.3},

		Pressure: PressureParams{Scale: 1.2, Default: 0.6},
		Wind:     WindParams{Speed: Triangle{Left: 1.0, Peak: 4.0, Right: 8.5}, Default: 0.5},
		Cloud: CloudParams{
			Day:          Triangle{Left: 20, Peak: 70, Right: 100},
			Night:        Triangle{Left: 0, Peak: 30, Right: 60},
			Default:      0.5,
			SunHighStart: 10,
			SunHighEnd:   16,
		},
		Precip: PrecipParams{
			Steps: []PrecipStep{
				{MaxMM: 0.2, Score: 1.0},
				{MaxMM: 2.0, Score: 0.8},
				{MaxMM: 8.0, Score: 0.5},
			},
			Above:   0.2,
			Default: 0.7,
		},
		Flow:        FlowParams{Scale: 0.4, Default: 0.5},
		Crepuscular: CrepuscularParams{PeakHours: []float64{6, 19}, Slope: 1.0 / 3.0},
		Defaults:    Defaults{Habitat: 0.7, Turbidity: 0.6, ShoreAzimuth: 0, Lunar: 0.5},
		Exponents:   Exponents{Habitat: 1.0, Conditions: 1.0, Time: 0.9},
	}
}

// Profile returns the temperature profile for s, falling back to the
// FallbackSpecies entry when s has none.
func (c ScoringConfig) Profile(s Species) TempProfile {
	if p, ok := c.Species[s]; ok {
		return p
	}
	return c.Species[FallbackSpecies]
}

// WaterWeightsFor returns the water composite table for ctx, or the lake table.
func (c ScoringConfig) WaterWeightsFor(ctx WaterContext) Weights {
	if w, ok := c.WaterWeights[ctx]; ok {
		return w
	}
	return c.WaterWeights[ContextLake]
}

// WeatherWeightsFor returns the weather composite table for ctx, or the lake table.
func (c ScoringConfig) WeatherWeightsFor(ctx WaterContext) Weights {
	if w, ok := c.WeatherWeights[ctx]; ok {
		return w
	}
	return c.WeatherWeights[ContextLake]
}

// Validate reports every structural problem in the configuration.
func (c ScoringConfig) Validate() error {
	var errs []error

	if _, ok := c.Species[FallbackSpecies]; !ok {
		errs = append(errs, fmt.Errorf("species: fallback entry %q is required", FallbackSpecies))
	}
	for _, s := range sortedSpecies(c.Species) {
		p := c.Species[s]
		if _, known := ParseSpecies(string(s)); !known {
			errs = append(errs, fmt.Errorf("species: unknown tag %q", s))
		}
		if p.TolLow <= 0 || p.TolHigh <= 0 {
			errs = append(errs, fmt.Errorf("species %s: tolerances must be positive", s))
		}
	}

	for _, ctx := range []WaterContext{ContextLake, ContextRiver, ContextSea} {
		if err := c.WaterWeights[ctx].validate(); err != nil {
			errs = append(errs, fmt.Errorf("water_weights %s: %w", ctx, err))
		}
		if err := c.WeatherWeights[ctx].validate(); err != nil {
			errs = append(errs, fmt.Errorf("weather_weights %s: %w", ctx, err))
		}
	}
	if err := c.ConditionsWeights.validate(); err != nil {
		errs = append(errs, fmt.Errorf("conditions_weights: %w", err))
	}
	if err := c.TimeWeights.validate(); err != nil {
		errs = append(errs, fmt.Errorf("time_weights: %w", err))
	}

	if c.Pressure.Scale <= 0 {
		errs = append(errs, errors.New("pressure.scale must be positive"))
	}
	if c.Flow.Scale <= 0 {
		errs = append(errs, errors.New("flow.scale must be positive"))
	}
	for name, tri := range map[string]Triangle{"wind.speed": c.Wind.Speed, "cloud.day": c.Cloud.Day, "cloud.night": c.Cloud.Night} {
		if !(tri.Left <= tri.Peak && tri.Peak <= tri.Right && tri.Left < tri.Right) {
			errs = append(errs, fmt.Errorf("%s: corners must satisfy left <= peak <= right", name))
		}
	}
	if c.Cloud.SunHighStart < 0 || c.Cloud.SunHighEnd > 23 || c.Cloud.SunHighStart > c.Cloud.SunHighEnd {
		errs = append(errs, errors.New("cloud: sun_high window must lie within 0..23"))
	}

	if len(c.Precip.Steps) == 0 {
		errs = append(errs, errors.New("precip.steps must not be empty"))
	}
	for i := 1; i < len(c.Precip.Steps); i++ {
		if c.Precip.Steps[i].MaxMM <= c.Precip.Steps[i-1].MaxMM {
			errs = append(errs, errors.New("precip.steps must be strictly ascending by max_mm"))
			break
		}
	}

	if len(c.Crepuscular.PeakHours) == 0 {
		errs = append(errs, errors.New("crepuscular.peak_hours must not be empty"))
	}
	if c.Crepuscular.Slope <= 0 {
		errs = append(errs, errors.New("crepuscular.slope must be positive"))
	}

	unit := map[string]float64{
		"pressure.default":   c.Pressure.Default,
		"wind.default":       c.Wind.Default,
		"cloud.default":      c.Cloud.Default,
		"precip.default":     c.Precip.Default,
		"precip.above":       c.Precip.Above,
		"flow.default":       c.Flow.Default,
		"defaults.habitat":   c.Defaults.Habitat,
		"defaults.turbidity": c.Defaults.Turbidity,
		"defaults.lunar":     c.Defaults.Lunar,
	}
	for _, step := range c.Precip.Steps {
		unit[fmt.Sprintf("precip.steps[%g]", step.MaxMM)] = step.Score
	}
	names := make([]string, 0, len(unit))
	for name := range unit {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if v := unit[name]; v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must lie in [0,1], got %g", name, v))
		}
	}

	if c.Exponents.Habitat < 0 || c.Exponents.Conditions < 0 || c.Exponents.Time < 0 {
		errs = append(errs, errors.New("exponents must be non-negative"))
	}

	return errors.Join(errs...)
}

func sortedSpecies(m map[Species]TempProfile) []Species {
	out := make([]Species, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
