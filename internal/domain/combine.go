package domain

import (
	"errors"
	"fmt"
	"sort"
)

// Weights maps dimension names to their relative weight in a composite.
type Weights map[Dimension]float64

// Scores maps dimension names to a possibly Unknown score.
type Scores map[Dimension]Reading

// Clone returns an independent copy of w.
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Dimensions returns the weighted dimension names in sorted order.
func (w Weights) Dimensions() []Dimension {
	out := make([]Dimension, 0, len(w))
	for d := range w {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (w Weights) validate() error {
	if len(w) == 0 {
		return errors.New("table is empty")
	}
	var total float64
	for _, d := range w.Dimensions() {
		if w[d] < 0 {
			return fmt.Errorf("weight %s is negative", d)
		}
		total += w[d]
	}
	if total <= 0 {
		return errors.New("weights sum to zero")
	}
	return nil
}

// Combine returns the weighted mean of the known scores. Dimensions whose
// score is absent or Unknown drop out of both the numerator and the
// denominator, so the remaining weights are renormalized rather than the
// missing ones being substituted. It returns 0 when no weighted dimension
// has a known score.
func Combine(weights Weights, scores Scores) float64 {
	var sum, total float64
	// Sorted iteration keeps the floating point sum bit-identical across calls.
	for _, d := range weights.Dimensions() {
		v, ok := scores[d].Value()
		if !ok {
			continue
		}
		w := weights[d]
		sum += w * v
		total += w
	}
	if total <= 0 {
		return 0
	}
	return sum / total
}
