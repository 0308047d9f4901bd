package domain

import "context"

// EngineConfig is the read-only engine configuration a query is resolved against.
type EngineConfig struct {
	// BaseSRID is the engine's working spatial reference.
	BaseSRID int
	// MaxResults caps the number of matches a single query may ask for.
	MaxResults int
}

// DefaultEngineConfig matches the BC engine: BC Albers, up to 1000 results.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{BaseSRID: SRIDBCAlbers, MaxResults: 1000}
}

// PresentationConfig drives the per-record KML hints.
type PresentationConfig struct {
	KMLStylesURL       string
	DefaultLookAtRange int
}

// Geocoder is the matching engine. Implementations must be safe for
// concurrent use by many requests.
type Geocoder interface {
	// Geocode returns matches for q in rank order.
	Geocode(ctx context.Context, q Query) (SearchResults, error)

	// EngineConfig returns the configuration queries are validated against.
	EngineConfig() EngineConfig

	// PresentationConfig returns the KML presentation settings, or nil when
	// the engine has none.
	PresentationConfig() *PresentationConfig
}

// Reprojector converts points between spatial references. Implementations
// must be safe for concurrent use.
type Reprojector interface {
	Reproject(p Point, toSRID int) (Point, error)
}
