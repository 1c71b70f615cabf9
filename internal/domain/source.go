package domain

import "context"

// FeatureSource supplies the weather feature bundle for a location. The
// call is the only blocking step of a scoring request.
type FeatureSource interface {
	Features(ctx context.Context, lat, lon float64) (FeatureBundle, error)
}
