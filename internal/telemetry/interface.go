package telemetry

import (
	"context"

	"codeberg.org/mutker/framectl/internal/governor"
)

// Collector defines the core domain interface
type Collector interface {
	Record(ctx context.Context, snapshot *governor.Snapshot) error
	Close() error
}

// Repository defines the interface for snapshot storage
type Repository interface {
	Record(snapshot *governor.Snapshot) error
	Close() error
}
