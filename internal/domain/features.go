package domain

// Water temperature estimation from air temperature.
const (
	waterEstimateWindow = 72 // hourly samples
	waterEstimateScale  = 0.8
	waterEstimateOffset = 1.0
	waterEstimateMin    = 0.0
	waterEstimateMax    = 30.0
)

// Pressure trend backward difference span, in samples.
const pressureTrendSpan = 4

// Rainfall accumulation window, in hourly samples.
const rainWindow = 6

// HourlySeries is a raw hourly time series as delivered by the weather
// provider, oldest sample first. Any sample may be Unknown.
type HourlySeries struct {
	Temperature   []Reading // °C at 2 m
	Pressure      []Reading // surface pressure, hPa
	WindSpeed     []Reading // m/s at 10 m
	WindDirection []Reading // degrees at 10 m
	CloudCover    []Reading // percent
	Precipitation []Reading // mm per hour
	IsDay         []Reading // 1 day, 0 night
}

// FeatureBundle holds point-in-time features for one location. Every field
// is independently optional.
type FeatureBundle struct {
	WaterTemp     Reading `json:"water_temp"`
	AirTemp       Reading `json:"temp2m_now"`
	PressureTrend Reading `json:"dp_h"`
	WindSpeed     Reading `json:"wind_ms"`
	WindDirection Reading `json:"wind_dir"`
	CloudCover    Reading `json:"cloud_pct"`
	Rain6h        Reading `json:"rain_6h"`
	IsDay         Flag    `json:"is_day"`
}

// ExtractFeatures derives the feature bundle from a raw hourly series.
func ExtractFeatures(s HourlySeries) FeatureBundle {
	return FeatureBundle{
		WaterTemp:     EstimateWaterTemp(s.Temperature),
		AirTemp:       LastKnown(s.Temperature),
		PressureTrend: PressureTrend(s.Pressure),
		WindSpeed:     LastKnown(s.WindSpeed),
		WindDirection: LastKnown(s.WindDirection),
		CloudCover:    LastKnown(s.CloudCover),
		Rain6h:        Rain6h(s.Precipitation),
		IsDay:         dayFlag(s.IsDay),
	}
}

// EstimateWaterTemp approximates water temperature as 0.8·mean+1.0 of the
// most recent (up to 72) known air temperatures, clamped to [0, 30] °C.
func EstimateWaterTemp(temps []Reading) Reading {
	known := knownValues(temps)
	if len(known) == 0 {
		return Unknown()
	}
	if len(known) > waterEstimateWindow {
		known = known[len(known)-waterEstimateWindow:]
	}
	var sum float64
	for _, v := range known {
		sum += v
	}
	est := waterEstimateScale*(sum/float64(len(known))) + waterEstimateOffset
	return Known(min(waterEstimateMax, max(waterEstimateMin, est)))
}

// PressureTrend returns the average hourly pressure change over the last
// three hours, computed on known samples only. With two or three known
// samples it falls back to the endpoints divided by the sample gap count;
// with fewer than two the trend is Unknown.
func PressureTrend(pressure []Reading) Reading {
	p := knownValues(pressure)
	n := len(p)
	switch {
	case n >= pressureTrendSpan:
		return Known((p[n-1] - p[n-pressureTrendSpan]) / float64(pressureTrendSpan-1))
	case n >= 2:
		return Known((p[n-1] - p[0]) / float64(n-1))
	default:
		return Unknown()
	}
}

// LastKnown returns the most recent known sample, scanning from the end.
func LastKnown(series []Reading) Reading {
	for i := len(series) - 1; i >= 0; i-- {
		if series[i].IsKnown() {
			return series[i]
		}
	}
	return Unknown()
}

// Rain6h sums the last six samples. Unknown samples contribute nothing, but
// if all six are Unknown the accumulation is Unknown rather than zero.
func Rain6h(precip []Reading) Reading {
	window := precip
	if len(window) > rainWindow {
		window = window[len(window)-rainWindow:]
	}
	known := knownValues(window)
	if len(known) == 0 {
		return Unknown()
	}
	var sum float64
	for _, v := range known {
		sum += v
	}
	return Known(sum)
}

func dayFlag(series []Reading) Flag {
	v, ok := LastKnown(series).Value()
	if !ok {
		return UnknownFlag()
	}
	return KnownFlag(v != 0)
}

func knownValues(series []Reading) []float64 {
	out := make([]float64, 0, len(series))
	for _, r := range series {
		if v, ok := r.Value(); ok {
			out = append(out, v)
		}
	}
	return out
}
