package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/couchcryptid/fishability-service/internal/domain"
	"github.com/couchcryptid/fishability-service/internal/observability"
)

// DefaultBaseURL is the public Open-Meteo forecast endpoint.
const DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

// pastHours is how much history each request asks for.
const pastHours = 72

var hourlyVariables = []string{
	"temperature_2m",
	"surface_pressure",
	"wind_speed_10m",
	"wind_direction_10m",
	"cloud_cover",
	"precipitation",
	"is_day",
}

// Client implements domain.FeatureSource using the Open-Meteo forecast API.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an Open-Meteo client. All requests share one circuit
// breaker, so a failing upstream is shed quickly instead of holding every
// batch for the full timeout.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: newBreaker("open-meteo"),
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

func newBreaker(name string) *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
}

// CheckReadiness fails while the circuit breaker is open.
func (c *Client) CheckReadiness(_ context.Context) error {
	if c.breaker.State() == gobreaker.StateOpen {
		return errors.New("open-meteo circuit breaker is open")
	}
	return nil
}

// Features fetches the last 72 hours of weather at the point and reduces
// them to a feature bundle.
func (c *Client) Features(ctx context.Context, lat, lon float64) (domain.FeatureBundle, error) {
	series, err := c.Hourly(ctx, lat, lon)
	if err != nil {
		return domain.FeatureBundle{}, err
	}
	return domain.ExtractFeatures(series), nil
}

// Hourly fetches the raw hourly series, oldest sample first, ending at the
// current hour. Null samples decode as Unknown readings.
func (c *Client) Hourly(ctx context.Context, lat, lon float64) (domain.HourlySeries, error) {
	params := url.Values{
		"latitude":        {strconv.FormatFloat(lat, 'f', -1, 64)},
		"longitude":       {strconv.FormatFloat(lon, 'f', -1, 64)},
		"timezone":        {"auto"},
		"hourly":          {strings.Join(hourlyVariables, ",")},
		"past_hours":      {strconv.Itoa(pastHours)},
		"forecast_hours":  {"1"},
		"wind_speed_unit": {"ms"},
	}

	start := time.Now()
	series, err := c.doRequest(ctx, c.baseURL+"?"+params.Encode())
	c.metrics.UpstreamDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.logger.Warn("open-meteo fetch failed", "error", err, "lat", lat, "lon", lon)
		return domain.HourlySeries{}, err
	}
	c.logger.Debug("open-meteo fetch", "lat", lat, "lon", lon, "samples", len(series.Temperature))
	return series, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.HourlySeries, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.HourlySeries{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, doErr := c.httpClient.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		// 5xx and 429 count against the breaker; other statuses are the caller's problem.
		if r.StatusCode >= http.StatusInternalServerError || r.StatusCode == http.StatusTooManyRequests {
			defer r.Body.Close()
			return nil, statusError(r)
		}
		return r, nil
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "breaker_open"
		}
		c.metrics.UpstreamRequests.WithLabelValues(outcome).Inc()
		return domain.HourlySeries{}, fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.UpstreamRequests.WithLabelValues("error").Inc()
		return domain.HourlySeries{}, fmt.Errorf("%w: %w", domain.ErrUpstream, statusError(resp))
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.metrics.UpstreamRequests.WithLabelValues("error").Inc()
		return domain.HourlySeries{}, fmt.Errorf("%w: decode response: %w", domain.ErrUpstream, err)
	}

	c.metrics.UpstreamRequests.WithLabelValues("success").Inc()
	return body.Hourly.series(), nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	var apiErr struct {
		Reason string `json:"reason"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Reason != "" {
		return fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, apiErr.Reason)
	}
	return fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

// Open-Meteo API response types.

type response struct {
	Hourly hourly `json:"hourly"`
}

type hourly struct {
	Time          []string         `json:"time"`
	Temperature   []domain.Reading `json:"temperature_2m"`
	Pressure      []domain.Reading `json:"surface_pressure"`
	WindSpeed     []domain.Reading `json:"wind_speed_10m"`
	WindDirection []domain.Reading `json:"wind_direction_10m"`
	CloudCover    []domain.Reading `json:"cloud_cover"`
	Precipitation []domain.Reading `json:"precipitation"`
	IsDay         []domain.Reading `json:"is_day"`
}

func (h hourly) series() domain.HourlySeries {
	return domain.HourlySeries{
		Temperature:   h.Temperature,
		Pressure:      h.Pressure,
		WindSpeed:     h.WindSpeed,
		WindDirection: h.WindDirection,
		CloudCover:    h.CloudCover,
		Precipitation: h.Precipitation,
		IsDay:         h.IsDay,
	}
}
