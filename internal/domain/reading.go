package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Reading is an optional numeric observation. The zero value is Unknown.
//
// Every signal entering the engine is either a present finite number or an
// explicit Unknown; the distinction is made once, where raw data is parsed,
// and never re-inferred by the scorers.
type Reading struct {
	v     float64
	known bool
}

// Known returns a present reading. Non-finite values (NaN, ±Inf) are
// treated as Unknown.
func Known(v float64) Reading {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Reading{}
	}
	return Reading{v: v, known: true}
}

// Unknown returns an absent reading.
func Unknown() Reading { return Reading{} }

// KnownPtr converts a nullable float into a Reading.
func KnownPtr(p *float64) Reading {
	if p == nil {
		return Reading{}
	}
	return Known(*p)
}

// Value returns the value and whether it is present.
func (r Reading) Value() (float64, bool) { return r.v, r.known }

// IsKnown reports whether the reading carries a value.
func (r Reading) IsKnown() bool { return r.known }

// Or returns the value, or def when Unknown.
func (r Reading) Or(def float64) float64 {
	if !r.known {
		return def
	}
	return r.v
}

// Ptr returns a pointer to the value, or nil when Unknown.
func (r Reading) Ptr() *float64 {
	if !r.known {
		return nil
	}
	v := r.v
	return &v
}

// Equal reports whether both readings are Unknown or hold the same value.
func (r Reading) Equal(o Reading) bool { return r == o }

func (r Reading) String() string {
	if !r.known {
		return "unknown"
	}
	return fmt.Sprintf("%g", r.v)
}

// MarshalJSON encodes Unknown as null.
func (r Reading) MarshalJSON() ([]byte, error) {
	if !r.known {
		return []byte("null"), nil
	}
	return json.Marshal(r.v)
}

// UnmarshalJSON accepts a number or null.
func (r *Reading) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = Reading{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("reading: %w", err)
	}
	*r = Known(v)
	return nil
}

// Flag is an optional boolean observation, such as the day/night indicator.
type Flag struct {
	v     bool
	known bool
}

// KnownFlag returns a present flag.
func KnownFlag(v bool) Flag { return Flag{v: v, known: true} }

// UnknownFlag returns an absent flag.
func UnknownFlag() Flag { return Flag{} }

// Value returns the flag and whether it is present.
func (f Flag) Value() (bool, bool) { return f.v, f.known }

// IsKnown reports whether the flag carries a value.
func (f Flag) IsKnown() bool { return f.known }

// Equal reports whether both flags are Unknown or hold the same value.
func (f Flag) Equal(o Flag) bool { return f == o }

// MarshalJSON encodes Unknown as null.
func (f Flag) MarshalJSON() ([]byte, error) {
	if !f.known {
		return []byte("null"), nil
	}
	return json.Marshal(f.v)
}

// UnmarshalJSON accepts a bool or null.
func (f *Flag) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = Flag{}
		return nil
	}
	var v bool
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("flag: %w", err)
	}
	*f = KnownFlag(v)
	return nil
}
