package store

import (
	"context"

	"stockwatch/models"
)

// Store is the durable row storage behind the watch table. Writes are
// upserts keyed by (record type, ticker); there is no delete.
type Store interface {
	// Put overwrites the row addressed by the record's key.
	Put(ctx context.Context, rec models.Record) error
	// Get returns the row and whether it exists.
	Get(ctx context.Context, typ models.RecordType, ticker string) (models.Record, bool, error)
	// List returns all rows of one record type ordered by ticker.
	List(ctx context.Context, typ models.RecordType) ([]models.Record, error)
}
