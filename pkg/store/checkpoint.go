package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// BulkCheckpoint records how far a bulk deduplication job has progressed.
type BulkCheckpoint struct {
	JobID          string
	LastDocumentID string
	ProcessedCount int64
	UpdatedAt      time.Time
}

// CheckpointStore provides operations for bulk job progress tracking.
// Separate from IdentityStore to maintain interface cohesion.
// This is what allows a cancelled bulk deduplication to resume where it
// stopped instead of rescanning from the start.
type CheckpointStore interface {
	// GetCheckpoint returns the checkpoint for the given job,
	// or (nil, nil) if the job has never checkpointed.
	GetCheckpoint(ctx context.Context, jobID string) (*BulkCheckpoint, error)

	// SaveCheckpoint records the last processed document ID for a job.
	// Uses INSERT OR REPLACE to support upsert semantics.
	SaveCheckpoint(ctx context.Context, jobID, lastDocumentID string, processedCount int64) error

	// ClearCheckpoint removes the checkpoint for a completed job.
	ClearCheckpoint(ctx context.Context, jobID string) error
}

// Compile-time interface check
var _ CheckpointStore = (*SQLiteIdentityStore)(nil)

// GetCheckpoint returns the checkpoint for the given job.
func (s *SQLiteIdentityStore) GetCheckpoint(ctx context.Context, jobID string) (*BulkCheckpoint, error) {
	var cp BulkCheckpoint
	err := s.db.QueryRowContext(ctx,
		`SELECT job_id, last_document_id, processed_count, updated_at
		 FROM dedup_checkpoints WHERE job_id = ?`, jobID).
		Scan(&cp.JobID, &cp.LastDocumentID, &cp.ProcessedCount, &cp.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return &cp, nil
}

// SaveCheckpoint records the last processed document ID for a job.
func (s *SQLiteIdentityStore) SaveCheckpoint(ctx context.Context, jobID, lastDocumentID string, processedCount int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO dedup_checkpoints (job_id, last_document_id, processed_count, updated_at)
		 VALUES (?, ?, ?, ?)`,
		jobID, lastDocumentID, processedCount, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// ClearCheckpoint removes the checkpoint for a completed job.
func (s *SQLiteIdentityStore) ClearCheckpoint(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM dedup_checkpoints WHERE job_id = ?", jobID)
	if err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	return nil
}
