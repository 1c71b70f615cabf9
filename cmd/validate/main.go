// Command validate checks a scoring configuration and runs the reference
// scenarios through the engine. It verifies the membership functions, the
// documented end-to-end scores for the built-in tables, and output bounds
// and determinism across every species, context and hour.
//
// Usage:
//
//	go run ./cmd/validate -config scoring.yaml
//
// Without -config the built-in tables are validated, and the reference
// scores are checked exactly.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"reflect"
	"time"

	"github.com/couchcryptid/fishability-service/internal/config"
	"github.com/couchcryptid/fishability-service/internal/domain"
)

var dawn = time.Date(2024, time.May, 1, 6, 0, 0, 0, time.UTC)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	configPath := flag.String("config", "", "optional YAML scoring config to validate")
	flag.Parse()

	if code := run(*configPath); code != 0 {
		os.Exit(code)
	}
}

func run(configPath string) int {
	fmt.Println("=== Fishability Scoring Validation ===")
	fmt.Println()

	cfgPhase := &phase{name: "Scoring config"}
	cfg, err := config.LoadScoringConfig(configPath)
	if err != nil {
		cfgPhase.errorf("%v", err)
		cfg = domain.DefaultScoringConfig()
	}
	engine := domain.NewEngine(cfg)

	phases := []*phase{
		cfgPhase,
		validateMembership(cfg),
		validateOutputBounds(engine),
	}
	if configPath == "" {
		phases = append(phases, validateReferenceScenarios(engine))
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	source := "built-in defaults"
	if configPath != "" {
		source = configPath
	}
	fmt.Printf("Config: %s (%d species)\n", source, len(cfg.Species))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Membership functions ──

func validateMembership(cfg domain.ScoringConfig) *phase {
	p := &phase{name: "Membership functions"}

	for _, s := range domain.AllSpecies {
		prof := cfg.Profile(s)
		if got := domain.WaterTempScore(cfg, domain.Known(prof.Optimum), s); !floatEq(got, 1) {
			p.errorf("%s: water temp at optimum %.1f scored %.3f, want 1", s, prof.Optimum, got)
		}
		if got := domain.WaterTempScore(cfg, domain.Unknown(), s); !floatEq(got, 0.5) {
			p.errorf("%s: unknown water temp scored %.3f, want 0.5", s, got)
		}
	}

	for _, tc := range []struct {
		dir  float64
		want float64
	}{{0, 1}, {90, 0.5}, {180, 0}, {270, 0.5}} {
		if got := domain.WindAlignmentScore(domain.Known(tc.dir), domain.Known(0)); !floatEq(got, tc.want) {
			p.errorf("wind alignment at %.0f° scored %.3f, want %.1f", tc.dir, got, tc.want)
		}
	}

	for _, peak := range cfg.Crepuscular.PeakHours {
		if peak != math.Trunc(peak) {
			continue
		}
		if got := domain.CrepuscularScore(cfg, int(peak)); !floatEq(got, 1) {
			p.errorf("crepuscular score at peak hour %.0f is %.3f, want 1", peak, got)
		}
	}
	for hour := range 24 {
		if got := domain.CrepuscularScore(cfg, hour); got < 0 || got > 1 {
			p.errorf("crepuscular score at hour %d out of range: %.3f", hour, got)
		}
	}

	if got := domain.Combine(domain.Weights{}, domain.Scores{}); got != 0 {
		p.errorf("empty combination scored %.3f, want 0", got)
	}
	return p
}

// ── Output bounds ──

func validateOutputBounds(engine *domain.Engine) *phase {
	p := &phase{name: "Output bounds and determinism"}
	contexts := []domain.WaterContext{domain.ContextLake, domain.ContextRiver, domain.ContextSea}
	bundles := map[string]domain.FeatureBundle{
		"ideal":   idealFeatures(),
		"missing": {},
		"storm":   stormFeatures(),
	}

	for _, s := range domain.AllSpecies {
		for _, c := range contexts {
			for name, f := range bundles {
				for hour := 0; hour < 24; hour += 3 {
					item := domain.ScoreItem{Lat: domain.Float64(45), Lon: domain.Float64(6), Species: string(s), Context: string(c)}
					at := dawn.Add(time.Duration(hour-6) * time.Hour)
					label := fmt.Sprintf("%s/%s/%s/%02dh", s, c, name, hour)

					first, err := engine.Score(item, at, f)
					if err != nil {
						p.errorf("%s: %v", label, err)
						continue
					}
					checkResult(p, label, first)

					second, err := engine.Score(item, at, f)
					if err != nil || !reflect.DeepEqual(first, second) {
						p.errorf("%s: scoring is not deterministic", label)
					}
				}
			}
		}
	}
	return p
}

func checkResult(p *phase, label string, r domain.ScoreResult) {
	if r.Score < 0 || r.Score > 100 {
		p.errorf("%s: score %d out of [0,100]", label, r.Score)
	}
	for name, v := range map[string]float64{
		"WATER":   r.SubScores.Water,
		"WEATHER": r.SubScores.Weather,
		"TIME":    r.SubScores.Time,
		"HABITAT": r.SubScores.Habitat,
	} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			p.errorf("%s: subscore %s = %v out of [0,1]", label, name, v)
		}
	}
}

// ── Reference scenarios ──

func validateReferenceScenarios(engine *domain.Engine) *phase {
	p := &phase{name: "Reference scenarios"}

	water, turbidity, habitat := 12.0, 1.0, 1.0
	trout := domain.ScoreItem{
		Lat:       domain.Float64(45.9),
		Lon:       domain.Float64(6.1),
		Time:      "2024-05-01T06:00:00Z",
		Species:   "trout",
		Context:   "lake",
		WaterTemp: &water,
		Turbidity: &turbidity,
		Habitat:   &habitat,
	}

	r, err := engine.Score(trout, dawn, idealFeatures())
	switch {
	case err != nil:
		p.errorf("trout optimum: %v", err)
	default:
		expectInt(p, "trout optimum score", r.Score, 86)
		expectFloat(p, "trout optimum TIME", r.SubScores.Time, 0.85)
		expectFloat(p, "trout optimum WATER", r.SubScores.Water, 1)
	}

	noon := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	r, err = engine.Score(domain.ScoreItem{Lat: domain.Float64(50), Lon: domain.Float64(4)}, noon, domain.FeatureBundle{})
	switch {
	case err != nil:
		p.errorf("missing data: %v", err)
	default:
		expectInt(p, "missing data score", r.Score, 7)
		expectFloat(p, "missing data WATER", r.SubScores.Water, 0.53)
		expectFloat(p, "missing data WEATHER", r.SubScores.Weather, 0.62)
		expectFloat(p, "missing data HABITAT", r.SubScores.Habitat, 0.7)
		if r.Species != domain.SpeciesCarp {
			p.errorf("missing data species %q, want carp", r.Species)
		}
	}

	sea := trout
	sea.Context = "sea"
	r, err = engine.Score(sea, dawn, idealFeatures())
	switch {
	case err != nil:
		p.errorf("sea: %v", err)
	default:
		expectInt(p, "sea score", r.Score, 86)
		if len(r.Notes) == 0 {
			p.errorf("sea: expected a note about missing tide and swell data")
		}
	}
	return p
}

func expectInt(p *phase, label string, got, want int) {
	if got != want {
		p.errorf("%s = %d, want %d", label, got, want)
	}
}

func expectFloat(p *phase, label string, got, want float64) {
	if !floatEq(got, want) {
		p.errorf("%s = %.3f, want %.3f", label, got, want)
	}
}

func idealFeatures() domain.FeatureBundle {
	return domain.FeatureBundle{
		WaterTemp:     domain.Known(14),
		AirTemp:       domain.Known(13),
		PressureTrend: domain.Known(0),
		WindSpeed:     domain.Known(4),
		WindDirection: domain.Known(0),
		CloudCover:    domain.Known(30),
		Rain6h:        domain.Known(0),
		IsDay:         domain.KnownFlag(true),
	}
}

func stormFeatures() domain.FeatureBundle {
	return domain.FeatureBundle{
		WaterTemp:     domain.Known(3),
		AirTemp:       domain.Known(-2),
		PressureTrend: domain.Known(-4),
		WindSpeed:     domain.Known(18),
		WindDirection: domain.Known(200),
		CloudCover:    domain.Known(100),
		Rain6h:        domain.Known(30),
		IsDay:         domain.KnownFlag(false),
	}
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-3
}
