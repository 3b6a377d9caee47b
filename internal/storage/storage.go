// Package storage holds the sink-agnostic loading contract used by the
// pipeline driver. Backends live in subpackages (currently postgres).
package storage

import (
	"context"

	"loginetl/pkg/records"
)

// Loader stages and persists normalized records in one unit of work.
// Implementations must leave the permanent relation untouched on error.
type Loader interface {
	Load(ctx context.Context, recs []records.Record) (LoadResult, error)
}

// LoadResult reports what one Load call wrote.
type LoadResult struct {
	Staged   int64 // rows inserted into the staging relation
	Upserted int64 // rows inserted into the permanent relation
}
