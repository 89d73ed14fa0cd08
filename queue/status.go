package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// JobState mirrors the state machine a polling client observes via
// GET /api/jobs/:id.
type JobState string

const (
	JobWaiting   JobState = "waiting"
	JobActive    JobState = "active"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// Status is the externally visible status of one async job.
type Status struct {
	JobID    string          `json:"jobId"`
	State    JobState        `json:"state"`
	Progress int             `json:"progress"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// statusTTL bounds how long a completed/failed job's status remains
// queryable, matching the extraction queue's 24h completed-job retention.
const statusTTL = 24 * time.Hour

func statusKey(jobID string) string {
	return fmt.Sprintf("chatinvoice:job-status:%s", jobID)
}

// StatusStore tracks per-job state/progress/result for client polling.
type StatusStore struct {
	rdb *redis.Client
}

// NewStatusStore constructs a StatusStore.
func NewStatusStore(rdb *redis.Client) *StatusStore {
	return &StatusStore{rdb: rdb}
}

// Set records the current status for jobID.
func (s *StatusStore) Set(ctx context.Context, status Status) error {
	encoded, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("queue: marshal job status: %w", err)
	}
	return s.rdb.Set(ctx, statusKey(status.JobID), encoded, statusTTL).Err()
}

// Get returns the current status for jobID, or nil if unknown/expired.
func (s *StatusStore) Get(ctx context.Context, jobID string) (*Status, error) {
	raw, err := s.rdb.Get(ctx, statusKey(jobID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("queue: get job status: %w", err)
	}
	var status Status
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return nil, fmt.Errorf("queue: decode job status: %w", err)
	}
	return &status, nil
}
