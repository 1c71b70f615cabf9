package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors shared by the scoring boundary and its adapters.
var (
	// ErrInvalidItem marks a malformed scoring request field.
	ErrInvalidItem = errors.New("invalid scoring item")

	// ErrUpstream marks a failure of the external weather data source.
	ErrUpstream = errors.New("weather data source error")
)

// ScoreItem is one scoring request. Coordinates are required; optional
// numeric overrides are nil when not supplied and become Readings when the
// engine resolves them.
type ScoreItem struct {
	Lat          *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon          *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
	Time         string   `json:"dt_iso,omitempty"`
	Species      string   `json:"species,omitempty"`
	Context      string   `json:"context,omitempty"`
	WaterTemp    *float64 `json:"water_temp,omitempty"`
	Turbidity    *float64 `json:"turbidity_score,omitempty" validate:"omitempty,gte=0,lte=1"`
	ShoreAzimuth *float64 `json:"shore_az,omitempty" validate:"omitempty,gte=0,lte=360"`
	Flow         *float64 `json:"flow,omitempty"`
	FlowMedian   *float64 `json:"flow_med,omitempty"`
	Habitat      *float64 `json:"habitat,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// Coords returns the item's coordinates, reading a missing one as 0.
// Validated items always carry both.
func (i ScoreItem) Coords() (lat, lon float64) {
	return KnownPtr(i.Lat).Or(0), KnownPtr(i.Lon).Or(0)
}

// Float64 returns a pointer to v, for building items with optional fields.
func Float64(v float64) *float64 { return &v }

// SubScores are the four top-level dimensions, each in [0,1].
type SubScores struct {
	Water   float64 `json:"WATER"`
	Weather float64 `json:"WEATHER"`
	Time    float64 `json:"TIME"`
	Habitat float64 `json:"HABITAT"`
}

// InputsUsed is a snapshot of every input after defaults were resolved.
type InputsUsed struct {
	WaterTemp     Reading `json:"water_temp_used"`
	PressureTrend Reading `json:"dp_h"`
	WindSpeed     Reading `json:"wind_ms"`
	WindDirection Reading `json:"wind_dir"`
	CloudCover    Reading `json:"cloud_pct"`
	Rain6h        Reading `json:"rain_6h"`
	SunHigh       bool    `json:"sun_high"`
	Turbidity     float64 `json:"turbidity_score"`
	Flow          Reading `json:"flow"`
	FlowMedian    Reading `json:"flow_med"`
	ShoreAzimuth  float64 `json:"shore_az"`
	Habitat       float64 `json:"habitat"`
}

// ScoreResult is the explained fishability score for one request.
type ScoreResult struct {
	Lat        float64               `json:"lat"`
	Lon        float64               `json:"lon"`
	Time       string                `json:"dt_iso"`
	Species    Species               `json:"species"`
	Context    WaterContext          `json:"context"`
	Score      int                   `json:"score"`
	SubScores  SubScores             `json:"subscores"`
	Dimensions map[Dimension]float64 `json:"dimensions,omitempty"`
	InputsUsed InputsUsed            `json:"inputs_used"`
	Notes      []string              `json:"notes"`
}

// Accepted request timestamp layouts, tried in order. Timestamps without a
// zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ResolveTime parses an ISO-8601 request timestamp, defaulting to the
// current time when iso is empty.
func ResolveTime(iso string) (time.Time, error) {
	iso = strings.TrimSpace(iso)
	if iso == "" {
		return clock.Now().UTC(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, iso); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: dt_iso %q must be an ISO 8601 string", ErrInvalidItem, iso)
}
