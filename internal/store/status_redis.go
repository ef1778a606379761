package store

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "strconv"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// Conversion states written to the status hash.
const (
    StateQueued     = "queued"
    StateProcessing = "processing"
    StateRetrying   = "retrying"
    StateCompleted  = "completed"
    StateFailed     = "failed"
    StateCancelled  = "cancelled"
)

// statusTTL keeps finished job records around long enough for clients to poll.
const statusTTL = 7 * 24 * time.Hour

type Status struct {
    Status   string                 `json:"status"`
    Progress int                    `json:"progress"`
    Message  string                 `json:"message"`
    Start    *time.Time             `json:"start_time,omitempty"`
    End      *time.Time             `json:"end_time,omitempty"`
    Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Terminal reports whether the job will not change state again.
func (s Status) Terminal() bool {
    return s.Status == StateCompleted || s.Status == StateFailed || s.Status == StateCancelled
}

type RedisStatus struct {
    client *redis.Client
    keyNS  string
}

// Connect parses redisURL and pings the server.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil { return nil, err }
    c := redis.NewClient(opt)
    if err := c.Ping(ctx).Err(); err != nil {
        _ = c.Close()
        return nil, err
    }
    return c, nil
}

func NewRedisStatus(client *redis.Client) *RedisStatus {
    return &RedisStatus{client: client, keyNS: "job"}
}

func (s *RedisStatus) key(jobID string) string { return fmt.Sprintf("%s:%s:status", s.keyNS, jobID) }

func (s *RedisStatus) Set(ctx context.Context, jobID string, st Status) error {
    key := s.key(jobID)
    pipe := s.client.TxPipeline()
    pipe.HSet(ctx, key, encodeStatus(st))
    pipe.Expire(ctx, key, statusTTL)
    _, err := pipe.Exec(ctx)
    return err
}

func (s *RedisStatus) Get(ctx context.Context, jobID string) (Status, bool, error) {
    res, err := s.client.HGetAll(ctx, s.key(jobID)).Result()
    if err != nil { return Status{}, false, err }
    if len(res) == 0 { return Status{}, false, nil }
    return decodeStatus(res), true, nil
}

// Update merges fields into the record under WATCH, so concurrent writers
// never drop each other's metadata. Start is stamped on the first processing
// update and End on the first terminal one.
func (s *RedisStatus) Update(ctx context.Context, jobID, state string, progress int, msg string, meta map[string]interface{}) error {
    key := s.key(jobID)
    txf := func(tx *redis.Tx) error {
        res, err := tx.HGetAll(ctx, key).Result()
        if err != nil { return err }
        cur := decodeStatus(res)
        mergeStatus(&cur, state, progress, msg, meta, time.Now().UTC())
        _, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
            pipe.HSet(ctx, key, encodeStatus(cur))
            pipe.Expire(ctx, key, statusTTL)
            return nil
        })
        return err
    }
    for i := 0; i < maxUpdateRetries; i++ {
        err := s.client.Watch(ctx, txf, key)
        if !errors.Is(err, redis.TxFailedErr) { return err }
    }
    return fmt.Errorf("status update for %s: too much contention", jobID)
}

const maxUpdateRetries = 5

func mergeStatus(cur *Status, state string, progress int, msg string, meta map[string]interface{}, now time.Time) {
    cur.Status = state
    cur.Progress = progress
    cur.Message = msg
    if cur.Start == nil && state == StateProcessing { cur.Start = &now }
    if cur.End == nil && cur.Terminal() { cur.End = &now }
    if len(meta) > 0 {
        if cur.Metadata == nil { cur.Metadata = map[string]interface{}{} }
        for k, v := range meta { cur.Metadata[k] = v }
    }
}

func encodeStatus(st Status) map[string]interface{} {
    m := map[string]interface{}{
        "status":   st.Status,
        "progress": st.Progress,
        "message":  st.Message,
    }
    if st.Start != nil { m["start"] = st.Start.Format(time.RFC3339Nano) }
    if st.End != nil { m["end"] = st.End.Format(time.RFC3339Nano) }
    if st.Metadata != nil {
        b, _ := json.Marshal(st.Metadata)
        m["metadata"] = string(b)
    }
    return m
}

func decodeStatus(res map[string]string) Status {
    st := Status{Status: res["status"], Message: res["message"]}
    if p, err := strconv.Atoi(res["progress"]); err == nil { st.Progress = p }
    if v := res["start"]; v != "" {
        if t, err := time.Parse(time.RFC3339Nano, v); err == nil { st.Start = &t }
    }
    if v := res["end"]; v != "" {
        if t, err := time.Parse(time.RFC3339Nano, v); err == nil { st.End = &t }
    }
    if v := res["metadata"]; v != "" {
        _ = json.Unmarshal([]byte(v), &st.Metadata)
    }
    return st
}
