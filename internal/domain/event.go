package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// ParseScoreRequest deserializes a RawEvent's value into a ScoreItem.
// When the request carries no timestamp, the message timestamp is used so
// that replays score the same instant.
func ParseScoreRequest(raw RawEvent) (ScoreItem, error) {
	var item ScoreItem
	if err := json.Unmarshal(raw.Value, &item); err != nil {
		return ScoreItem{}, fmt.Errorf("%w: parse score request: %w", ErrInvalidItem, err)
	}
	if item.Time == "" && !raw.Timestamp.IsZero() {
		item.Time = raw.Timestamp.UTC().Format(time.RFC3339)
	}
	return item, nil
}

// SerializeScoreResult marshals a ScoreResult into an OutputEvent keyed by
// its deterministic result ID.
func SerializeScoreResult(result ScoreResult, scoredAt time.Time) (OutputEvent, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize score result: %w", err)
	}
	return OutputEvent{
		Key:   []byte(ResultID(result)),
		Value: data,
		Headers: map[string]string{
			"species":   string(result.Species),
			"context":   string(result.Context),
			"scored_at": scoredAt.UTC().Format(time.RFC3339),
		},
	}, nil
}

// ResultID produces a deterministic ID from the result's identifying fields.
// Rescoring the same request yields the same ID, so downstream consumers can
// upsert idempotently.
func ResultID(r ScoreResult) string {
	input := fmt.Sprintf("%.4f|%.4f|%s|%s|%s", r.Lat, r.Lon, r.Time, r.Species, r.Context)
	hash := sha256.Sum256([]byte(input))
	return string(r.Species) + "-" + hex.EncodeToString(hash[:8])
}
