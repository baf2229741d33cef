package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditCacheInvalidate drops every cached audit page.
	TaskAuditCacheInvalidate = "audit:cache_invalidate"
	// TaskAuditRetention deletes audit entries past the retention window.
	TaskAuditRetention = "audit:retention"
)

// CacheInvalidatePayload records why the page cache is being dropped.
type CacheInvalidatePayload struct {
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewCacheInvalidateTask constructs an Asynq task for cache invalidation.
func NewCacheInvalidateTask(reason string, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(CacheInvalidatePayload{Reason: reason, RequestedAt: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditCacheInvalidate, body, asynq.Queue(QueueDefault)), nil
}

// RetentionPayload carries the retention window in hours. Zero means the
// worker default.
type RetentionPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewRetentionTask constructs an Asynq task for the retention sweep.
func NewRetentionTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(RetentionPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, body, asynq.Queue(QueueDefault)), nil
}
