package health

import "context"

// StorePinger checks specification store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// CatalogChecker reports the collections available for querying.
type CatalogChecker interface {
	Collections() []string
}
