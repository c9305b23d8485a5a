package storage

import (
	"context"

	"livability-pipeline/models"
)

// RecordCache maps identifiers to their most recently retrieved record.
type RecordCache interface {
	Get(ctx context.Context, id string) (*models.LivabilityRecord, bool, error)
	Put(ctx context.Context, id string, rec *models.LivabilityRecord, raw string) error
}

// CheckpointStore persists orchestrator progress.
type CheckpointStore interface {
	Load() (*models.CheckpointState, error)
	Save(state *models.CheckpointState) error
}

// RowWriter appends output rows to the batch output dataset.
type RowWriter interface {
	WriteRows(rows []*models.OutputRow) error
	Close() error
}

// RecordWriter is the interface any records mirror must satisfy.
type RecordWriter interface {
	Write(entries []*models.CacheEntry) error
	Close() error
}
