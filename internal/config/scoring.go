package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/couchcryptid/fishability-service/internal/domain"
)

// LoadScoringConfig returns the built-in scoring tables, overridden by the
// YAML file at path when path is non-empty. Top-level maps merge key by key
// (one species or one context table can be replaced on its own); lists and
// individual weight tables are replaced whole. The result is validated.
func LoadScoringConfig(path string) (domain.ScoringConfig, error) {
	cfg := domain.DefaultScoringConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ScoringConfig{}, fmt.Errorf("read scoring config: %w", err)
	}
	if err := decodeScoringConfig(data, &cfg); err != nil {
		return domain.ScoringConfig{}, fmt.Errorf("parse scoring config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return domain.ScoringConfig{}, fmt.Errorf("invalid scoring config %s: %w", path, err)
	}
	return cfg, nil
}

func decodeScoringConfig(data []byte, cfg *domain.ScoringConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
