package queue

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "sync"
    "time"

    redis "github.com/redis/go-redis/v9"
    "github.com/rs/zerolog/log"
)

// Options names the stream and tunes the background loops.
type Options struct {
    Stream       string
    Group        string
    PollInterval time.Duration
    // ClaimIdle is how long a delivered message may stay unacked before
    // another consumer takes it over. Zero disables reclaiming.
    ClaimIdle    time.Duration
}

// Depths are the current lengths of the live stream, the delayed set and the DLQ.
type Depths struct {
    Stream  int64
    Delayed int64
    DLQ     int64
}

// RedisQueue carries ConvertJobs on a Redis stream read through a consumer
// group. Retries wait in a sorted set scored by due time; failures land on a
// separate DLQ stream.
type RedisQueue struct {
    client     *redis.Client
    opts       Options
    cancelKey  string
    delayedKey string
    dlqStream  string
    doneKey    string

    stop      chan struct{}
    closeOnce sync.Once
}

const moveBatch = 100

// promote moves due members of the delayed set onto the stream in one step,
// so two movers never deliver the same retry twice.
var promote = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, m in ipairs(due) do
  redis.call('XADD', KEYS[2], '*', 'data', m)
  redis.call('ZREM', KEYS[1], m)
end
return #due
`)

// NewRedisQueue creates the consumer group if needed and starts the delayed mover.
func NewRedisQueue(c *redis.Client, opts Options) (*RedisQueue, error) {
    if opts.Stream == "" { return nil, fmt.Errorf("queue stream name is required") }
    if opts.Group == "" { opts.Group = "workers:convert" }
    if opts.PollInterval <= 0 { opts.PollInterval = 500 * time.Millisecond }

    ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
    defer cancel()
    q := &RedisQueue{
        client:     c,
        opts:       opts,
        cancelKey:  opts.Stream + ":cancelled",
        delayedKey: opts.Stream + ":delayed",
        dlqStream:  opts.Stream + ":dlq",
        doneKey:    opts.Stream + ":done:",
        stop:       make(chan struct{}),
    }
    if err := c.XGroupCreateMkStream(ctx, opts.Stream, opts.Group, "$").Err(); err != nil && !isBusyGroupErr(err) {
        return nil, fmt.Errorf("xgroup create: %w", err)
    }
    go q.mover()
    return q, nil
}

func isBusyGroupErr(err error) bool {
    if err == nil { return false }
    return strings.Contains(strings.ToUpper(err.Error()), "BUSYGROUP")
}

// Close stops the mover. The Redis client is owned by the caller.
func (q *RedisQueue) Close() error {
    q.closeOnce.Do(func() { close(q.stop) })
    return nil
}

func (q *RedisQueue) Ping(ctx context.Context) error { return q.client.Ping(ctx).Err() }

// Enqueue validates job, stamps it and appends it to the stream.
func (q *RedisQueue) Enqueue(ctx context.Context, job ConvertJob) error {
    if err := job.Validate(); err != nil { return err }
    if job.EnqueuedAt.IsZero() { job.EnqueuedAt = time.Now().UTC() }
    payload, err := job.Marshal()
    if err != nil { return err }
    return q.client.XAdd(ctx, &redis.XAddArgs{
        Stream: q.opts.Stream,
        Values: map[string]any{"data": string(payload)},
    }).Err()
}

// EnqueueDelayed parks job until executeAt.
func (q *RedisQueue) EnqueueDelayed(ctx context.Context, job ConvertJob, executeAt time.Time) error {
    payload, err := job.Marshal()
    if err != nil { return err }
    return q.client.ZAdd(ctx, q.delayedKey, redis.Z{Score: float64(executeAt.Unix()), Member: string(payload)}).Err()
}

// Dequeue returns the next message for consumer, or an empty id when nothing
// arrived within timeout. Messages another consumer left unacked for longer
// than ClaimIdle are taken over before new ones are read. The caller acks.
func (q *RedisQueue) Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, []byte, error) {
    if q.opts.ClaimIdle > 0 {
        msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
            Stream:   q.opts.Stream,
            Group:    q.opts.Group,
            Consumer: consumer,
            MinIdle:  q.opts.ClaimIdle,
            Start:    "0-0",
            Count:    1,
        }).Result()
        if err != nil && !errors.Is(err, redis.Nil) { return "", nil, fmt.Errorf("xautoclaim: %w", err) }
        if len(msgs) > 0 {
            log.Warn().Str("msg_id", msgs[0].ID).Str("consumer", consumer).Msg("reclaimed stalled delivery")
            id, data := messageData(msgs[0])
            return id, data, nil
        }
    }

    res, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
        Group:    q.opts.Group,
        Consumer: consumer,
        Streams:  []string{q.opts.Stream, ">"},
        Count:    1,
        Block:    timeout,
    }).Result()
    if err != nil {
        if errors.Is(err, redis.Nil) { return "", nil, nil }
        return "", nil, err
    }
    if len(res) == 0 || len(res[0].Messages) == 0 { return "", nil, nil }
    id, data := messageData(res[0].Messages[0])
    return id, data, nil
}

func messageData(msg redis.XMessage) (string, []byte) {
    switch t := msg.Values["data"].(type) {
    case string:
        return msg.ID, []byte(t)
    case []byte:
        return msg.ID, t
    }
    return msg.ID, nil
}

func (q *RedisQueue) Ack(ctx context.Context, msgID string) error {
    if msgID == "" { return nil }
    return q.client.XAck(ctx, q.opts.Stream, q.opts.Group, msgID).Err()
}

// CancelJob flags jobID; workers skip flagged jobs they have not started.
func (q *RedisQueue) CancelJob(ctx context.Context, jobID string) error {
    return q.client.SAdd(ctx, q.cancelKey, jobID).Err()
}

func (q *RedisQueue) IsCancelled(ctx context.Context, jobID string) (bool, error) {
    return q.client.SIsMember(ctx, q.cancelKey, jobID).Result()
}

// AddDLQ records a payload that will not be retried.
func (q *RedisQueue) AddDLQ(ctx context.Context, payload []byte, reason string) error {
    return q.client.XAdd(ctx, &redis.XAddArgs{
        Stream: q.dlqStream,
        Values: map[string]any{"data": string(payload), "reason": reason, "failed_at": time.Now().UTC().Format(time.RFC3339)},
    }).Err()
}

// IsDone reports whether a job with this idempotency key already completed.
func (q *RedisQueue) IsDone(ctx context.Context, key string) (bool, error) {
    if key == "" { return false, nil }
    n, err := q.client.Exists(ctx, q.doneKey+key).Result()
    return n == 1, err
}

// MarkDone remembers a completed idempotency key for ttl.
func (q *RedisQueue) MarkDone(ctx context.Context, key string, ttl time.Duration) error {
    if key == "" { return nil }
    return q.client.Set(ctx, q.doneKey+key, time.Now().Unix(), ttl).Err()
}

func (q *RedisQueue) mover() {
    ticker := time.NewTicker(q.opts.PollInterval)
    defer ticker.Stop()
    for {
        select {
        case <-q.stop:
            return
        case <-ticker.C:
            ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
            n, err := q.promoteDue(ctx, time.Now())
            cancel()
            if err != nil {
                log.Warn().Err(err).Msg("delayed job promotion failed")
            } else if n > 0 {
                log.Debug().Int("moved", n).Msg("delayed jobs promoted")
            }
        }
    }
}

func (q *RedisQueue) promoteDue(ctx context.Context, now time.Time) (int, error) {
    return promote.Run(ctx, q.client, []string{q.delayedKey, q.opts.Stream}, now.Unix(), moveBatch).Int()
}

// Depths reads the three queue lengths in one round trip.
func (q *RedisQueue) Depths(ctx context.Context) (Depths, error) {
    pipe := q.client.Pipeline()
    live := pipe.XLen(ctx, q.opts.Stream)
    delayed := pipe.ZCard(ctx, q.delayedKey)
    dlq := pipe.XLen(ctx, q.dlqStream)
    if _, err := pipe.Exec(ctx); err != nil { return Depths{}, err }
    return Depths{Stream: live.Val(), Delayed: delayed.Val(), DLQ: dlq.Val()}, nil
}
