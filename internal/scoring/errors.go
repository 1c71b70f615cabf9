package scoring

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyBatch is returned when a batch carries no items.
	ErrEmptyBatch = errors.New("no items provided")

	// ErrBatchTooLarge is returned when a batch exceeds the configured maximum.
	ErrBatchTooLarge = errors.New("too many items")
)

// ValidationError reports the malformed fields of one batch item. It is
// raised before any item is scored.
type ValidationError struct {
	Index    int
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("item %d: %s", e.Index, strings.Join(e.Problems, "; "))
}

// ItemError reports a failure while scoring one point. The batch is
// aborted on the first ItemError.
type ItemError struct {
	Lat float64
	Lon float64
	Err error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("scoring failed for point (%g,%g): %v", e.Lat, e.Lon, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }
