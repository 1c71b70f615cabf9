package domain

import "math"

// WaterTempScore rates water temperature against the species profile.
// Unknown temperature scores the Bell neutral 0.5.
func WaterTempScore(cfg ScoringConfig, t Reading, s Species) float64 {
	p := cfg.Profile(s)
	return Bell(t, p.Optimum, p.TolLow, p.TolHigh)
}

// PressureTrendScore favours a steady barometer: exp(-(dp/scale)^2) for an
// hourly change dp in hPa/h.
func PressureTrendScore(cfg ScoringConfig, dp Reading) float64 {
	v, ok := dp.Value()
	if !ok {
		return cfg.Pressure.Default
	}
	r := v / cfg.Pressure.Scale
	return math.Exp(-r * r)
}

// WindSpeedScore rates wind speed in m/s.
func WindSpeedScore(cfg ScoringConfig, speed Reading) float64 {
	if !speed.IsKnown() {
		return cfg.Wind.Default
	}
	tri := cfg.Wind.Speed
	return Triangular(speed, tri.Left, tri.Peak, tri.Right)
}

// WindAlignmentScore maps the angle between wind direction and shoreline
// azimuth to [0,1]: 1 when aligned, 0.5 across, 0 opposed. A missing
// direction or azimuth is read as 0°, not as neutral.
// TODO(review): decide whether the 0° fallback should become neutral 0.5 like the other scorers.
func WindAlignmentScore(windDir, shoreAzimuth Reading) float64 {
	w := windDir.Or(0)
	s := shoreAzimuth.Or(0)
	rad := math.Mod(w-s, 360) * math.Pi / 180
	return Clamp01(0.5 + 0.5*math.Cos(rad))
}

// CloudScore rates cloud cover percentage, using the day triangle when the
// sun is high and the night triangle otherwise.
func CloudScore(cfg ScoringConfig, cover Reading, sunHigh bool) float64 {
	if !cover.IsKnown() {
		return cfg.Cloud.Default
	}
	tri := cfg.Cloud.Night
	if sunHigh {
		tri = cfg.Cloud.Day
	}
	return Triangular(cover, tri.Left, tri.Peak, tri.Right)
}

// PrecipScore steps down with rainfall accumulated over the last six hours.
func PrecipScore(cfg ScoringConfig, mm6h Reading) float64 {
	v, ok := mm6h.Value()
	if !ok {
		return cfg.Precip.Default
	}
	for _, step := range cfg.Precip.Steps {
		if v <= step.MaxMM {
			return step.Score
		}
	}
	return cfg.Precip.Above
}

// RiverFlowScore rates current discharge against its median as
// exp(-((flow/median-1)/scale)^2). Missing, zero or negative values score
// the configured neutral default.
func RiverFlowScore(cfg ScoringConfig, flow, median Reading) float64 {
	f, okF := flow.Value()
	m, okM := median.Value()
	if !okF || !okM || f <= 0 || m <= 0 {
		return cfg.Flow.Default
	}
	r := (f/m - 1) / cfg.Flow.Scale
	return math.Exp(-r * r)
}

// CrepuscularScore peaks at each configured twilight hour and decays
// linearly by Slope per hour, taking the best of the peaks.
func CrepuscularScore(cfg ScoringConfig, hour int) float64 {
	best := 0.0
	for _, peak := range cfg.Crepuscular.PeakHours {
		d := math.Abs(float64(hour) - peak)
		s := 1 - math.Min(d*cfg.Crepuscular.Slope, 1)
		if s > best {
			best = s
		}
	}
	return best
}

// SunHigh decides which cloud triangle applies: the hour must fall inside
// the configured window and, when the day flag is known, it must be day.
func SunHigh(cfg ScoringConfig, isDay Flag, hour int) bool {
	inWindow := hour >= cfg.Cloud.SunHighStart && hour <= cfg.Cloud.SunHighEnd
	if day, ok := isDay.Value(); ok {
		return day && inWindow
	}
	return inWindow
}
