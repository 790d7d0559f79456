// Package store persists accident records. Each collection is a Postgres
// table or a Mongo collection holding at most one record per EventNo.
package store

import (
	"context"
	"fmt"
	"strings"

	"cityflow/internal/accident"
)

// Store is the persistence contract shared by the backends.
type Store interface {
	FindIDs(ctx context.Context, collection string, ids []string, limit int) ([]string, error)
	InsertBulk(ctx context.Context, collection string, records []accident.Record) error
	ReadAll(ctx context.Context, collection string, limit int, order accident.SortOrder) ([]accident.Record, error)
	Close(ctx context.Context) error
}

// Open connects to the backend named by kind ("postgres" or "mongo").
func Open(ctx context.Context, kind, uri, database string) (Store, error) {
	switch strings.ToLower(kind) {
	case "", "postgres", "postgresql":
		return NewPostgres(ctx, uri)
	case "mongo", "mongodb":
		return NewMongo(ctx, uri, database)
	default:
		return nil, fmt.Errorf("unknown store backend %q", kind)
	}
}
