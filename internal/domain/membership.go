package domain

// Clamp01 limits x to [0, 1].
func Clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}

// Triangular is a triangular fuzzy membership: 0 at and outside
// [left, right], rising linearly to 1 at peak and falling back to 0 at right.
// An Unknown input scores 0; callers that must not treat a missing value as
// unsuitable resolve their default before calling.
func Triangular(x Reading, left, peak, right float64) float64 {
	v, ok := x.Value()
	if !ok {
		return 0
	}
	if v <= left || v >= right {
		return 0
	}
	if v < peak {
		return Clamp01((v - left) / (peak - left))
	}
	return Clamp01((right - v) / (right - peak))
}

// Bell is an asymmetric quadratic membership peaking at opt. Below opt the
// value falls as 1-((opt-x)/tolLow)^2, above it as 1-((x-opt)/tolHigh)^2,
// clamped to [0, 1]. An Unknown input scores a neutral 0.5.
func Bell(x Reading, opt, tolLow, tolHigh float64) float64 {
	v, ok := x.Value()
	if !ok {
		return 0.5
	}
	if v < opt {
		d := (opt - v) / tolLow
		return Clamp01(1 - d*d)
	}
	d := (v - opt) / tolHigh
	return Clamp01(1 - d*d)
}
