// Package metadata is the contract for artwork search providers.
package metadata

import "context"

// Result is one search hit. ImageURL may be empty or a placeholder.
type Result struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}

// Searcher finds series by name or by a provider-specific id.
type Searcher interface {
	SearchByName(ctx context.Context, term string) ([]Result, error)
	SearchByExternalID(ctx context.Context, id string) ([]Result, error)
}
