package queue

import (
    "encoding/json"
    "fmt"
    "strings"
    "time"
)

// ConvertJob is the stream payload for one asynchronous conversion.
type ConvertJob struct {
    JobID          string    `json:"job_id"`
    InputRef       string    `json:"input_ref"`
    Name           string    `json:"name,omitempty"`
    Format         string    `json:"format,omitempty"`
    Attempt        int       `json:"attempt"`
    EnqueuedAt     time.Time `json:"enqueued_at"`
    IdempotencyKey string    `json:"idempotency_key,omitempty"`
}

func (j ConvertJob) Validate() error {
    if strings.TrimSpace(j.JobID) == "" { return fmt.Errorf("job_id is required") }
    if strings.TrimSpace(j.InputRef) == "" { return fmt.Errorf("input_ref is required") }
    return nil
}

func (j ConvertJob) Marshal() ([]byte, error) { return json.Marshal(j) }

// ParseJob decodes and validates a stream payload.
func ParseJob(payload []byte) (ConvertJob, error) {
    var j ConvertJob
    if err := json.Unmarshal(payload, &j); err != nil {
        return j, fmt.Errorf("decode job: %w", err)
    }
    return j, j.Validate()
}
