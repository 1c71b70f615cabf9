// Command score evaluates a batch of fishability requests offline and prints
// the explained results as JSON. Weather features come from a local fixture
// file, or from the live Open-Meteo API with -live. Points without features
// are scored from the documented defaults.
//
// Usage:
//
//	go run ./cmd/score \
//	  -in requests.json \
//	  -features features.json \
//	  -config scoring.yaml
//
// The request file holds either {"items":[...]} or a bare array of items.
// The feature file holds an array of bundles, each tagged with lat and lon.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/fishability-service/internal/adapter/openmeteo"
	"github.com/couchcryptid/fishability-service/internal/config"
	"github.com/couchcryptid/fishability-service/internal/domain"
	"github.com/couchcryptid/fishability-service/internal/observability"
	"github.com/couchcryptid/fishability-service/internal/scoring"
)

// featureEntry is one fixture bundle pinned to a location.
type featureEntry struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	domain.FeatureBundle
}

// fixtureSource serves bundles from a fixture file, matched on coordinates
// rounded to 4 decimals. Unlisted points get an all-unknown bundle.
type fixtureSource struct {
	bundles map[[2]float64]domain.FeatureBundle
}

func newFixtureSource(entries []featureEntry) *fixtureSource {
	s := &fixtureSource{bundles: make(map[[2]float64]domain.FeatureBundle, len(entries))}
	for _, e := range entries {
		s.bundles[fixtureKey(e.Lat, e.Lon)] = e.FeatureBundle
	}
	return s
}

func (s *fixtureSource) Features(_ context.Context, lat, lon float64) (domain.FeatureBundle, error) {
	return s.bundles[fixtureKey(lat, lon)], nil
}

func fixtureKey(lat, lon float64) [2]float64 {
	return [2]float64{math.Round(lat*1e4) / 1e4, math.Round(lon*1e4) / 1e4}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	in := flag.String("in", "", "path to a JSON file of scoring requests")
	featuresPath := flag.String("features", "", "optional JSON file of weather feature bundles")
	configPath := flag.String("config", "", "optional YAML scoring config overriding the defaults")
	live := flag.Bool("live", false, "fetch weather features from the Open-Meteo API")
	out := flag.String("out", "", "output path (default stdout)")
	flag.Parse()

	if *in == "" || (*live && *featuresPath != "") {
		flag.Usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	metrics := observability.NewMetrics()

	scoringCfg, err := config.LoadScoringConfig(*configPath)
	if err != nil {
		return err
	}

	items, err := loadItems(*in)
	if err != nil {
		return err
	}

	var source domain.FeatureSource
	switch {
	case *live:
		timeout := 15 * time.Second
		client := openmeteo.NewClient(openmeteo.DefaultBaseURL, timeout, metrics, logger)
		source = openmeteo.NewCachedSource(client, max(len(items), 1), time.Hour, timeout, metrics)
	case *featuresPath != "":
		entries, err := loadFeatures(*featuresPath)
		if err != nil {
			return err
		}
		source = newFixtureSource(entries)
	default:
		source = newFixtureSource(nil)
	}

	svc := scoring.NewService(domain.NewEngine(scoringCfg), source, max(len(items), 1), 4, metrics, logger)
	results, err := svc.ScoreBatch(context.Background(), items)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(map[string]any{"results": results}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	data = append(data, '\n')

	if *out == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %d results to %s\n", len(results), *out)
	return nil
}

// loadItems accepts either a request envelope or a bare array.
func loadItems(path string) ([]domain.ScoreItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read requests: %w", err)
	}

	var items []domain.ScoreItem
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("parse requests %s: %w", path, err)
		}
		return items, nil
	}

	var envelope struct {
		Items []domain.ScoreItem `json:"items"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("parse requests %s: %w", path, err)
	}
	return envelope.Items, nil
}

func loadFeatures(path string) ([]featureEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read features: %w", err)
	}
	var entries []featureEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse features %s: %w", path, err)
	}
	return entries, nil
}
