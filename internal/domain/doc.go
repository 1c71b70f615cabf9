// Package domain implements the fuzzy fishability scoring engine.
//
// # Data Source
//
// Weather features come from an hourly time series covering up to the last
// 72 hours (Open-Meteo in production, see package openmeteo). The series is
// reduced to a [FeatureBundle] by [ExtractFeatures]:
//
//	water temperature   0.8 · mean(last ≤72 air temps) + 1.0, clamped to [0, 30] °C
//	pressure trend      (p[-1] − p[-4]) / 3 hPa/h over known samples
//	wind, cloud         last known sample
//	rain                sum of the last 6 samples, unknown if all 6 are missing
//	day flag            last known is_day sample
//
// Missing samples are represented by [Reading] values that are Unknown. The
// check happens once while parsing; scorers never see NaN or sentinel values.
//
// # Membership Functions
//
// Two shapes turn measurements into suitability in [0, 1]:
//
//	Triangular(x, left, peak, right)   unknown → 0
//	Bell(x, opt, tolLow, tolHigh)      unknown → 0.5
//
// The different unknown policies are deliberate. Scorers built on
// [Triangular] resolve their own neutral default before calling it.
//
// # Scoring
//
// Dimension scores are merged per composite with [Combine], a weighted mean
// that drops unknown dimensions from both numerator and denominator:
//
//	WATER    temp, turbidity (+ debit for rivers)
//	WEATHER  press, wind, align, cloud, rain (+ tide, swell for sea; always unknown)
//	TIME     crepuscul 0.7, luna 0.3 (lunar fixed at 0.5)
//
// The final score is multiplicative, so any near-zero dimension collapses it:
//
//	score = round(100 · H^1.0 · C^1.0 · T^0.9)
//	C     = Combine({water: 0.6, weather: 0.4})
//	H     = habitat prior, default 0.7
//
// Every table, default and exponent lives in [ScoringConfig]; the
// [Engine] reads nothing else, so identical inputs give identical results.
//
// # Known Quirk
//
// [WindAlignmentScore] reads a missing wind direction or shore azimuth as 0°
// rather than as neutral. With both missing the alignment scores 1.0.
package domain
