package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

// AuditRecordCleaner deletes old audit records.
type AuditRecordCleaner interface {
	DeleteOldRecords(retention time.Duration) (int64, error)
}

// CleanupAuditRecordsTask removes saved provider responses older than the retention period.
type CleanupAuditRecordsTask struct {
	RetentionDays int `json:"retention_days"`
}

// Config returns the queue configuration for audit cleanup tasks.
func (t CleanupAuditRecordsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cleanup_audit_records",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// CleanupAuditRecordsProcessor creates a processor function for CleanupAuditRecordsTask.
func CleanupAuditRecordsProcessor(cleaner AuditRecordCleaner) backlite.QueueProcessor[CleanupAuditRecordsTask] {
	return func(ctx context.Context, task CleanupAuditRecordsTask) error {
		if cleaner == nil {
			return fmt.Errorf("audit record cleaner not configured")
		}

		retentionDays := task.RetentionDays
		if retentionDays <= 0 {
			retentionDays = 30
		}
		retention := time.Duration(retentionDays) * 24 * time.Hour

		deleted, err := cleaner.DeleteOldRecords(retention)
		if err != nil {
			return fmt.Errorf("cleanup audit records: %w", err)
		}

		log.Printf("[TASK] Cleaned up %d audit records older than %d days", deleted, retentionDays)
		return nil
	}
}

// NewCleanupAuditRecordsQueue creates a backlite queue for audit cleanup tasks.
func NewCleanupAuditRecordsQueue(cleaner AuditRecordCleaner) backlite.Queue {
	return backlite.NewQueue(CleanupAuditRecordsProcessor(cleaner))
}
