package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfdeck/internal/logger"
	"github.com/local/pdfdeck/internal/metrics"
	"github.com/local/pdfdeck/internal/pipeline"
	"github.com/local/pdfdeck/internal/queue"
	"github.com/local/pdfdeck/internal/storage"
	"github.com/local/pdfdeck/internal/store"
)

type Queue interface {
	Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, []byte, error)
	Ack(ctx context.Context, msgID string) error
	IsCancelled(ctx context.Context, jobID string) (bool, error)
	EnqueueDelayed(ctx context.Context, job queue.ConvertJob, executeAt time.Time) error
	AddDLQ(ctx context.Context, payload []byte, reason string) error
	IsDone(ctx context.Context, key string) (bool, error)
	MarkDone(ctx context.Context, key string, ttl time.Duration) error
}

// doneTTL bounds how long a completed idempotency key suppresses redelivery.
const doneTTL = 24 * time.Hour

type StatusStore interface {
	Update(ctx context.Context, jobID, state string, progress int, msg string, meta map[string]interface{}) error
}

type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, string, error)
}

type Converter interface {
	Convert(ctx context.Context, in pipeline.Input) (*pipeline.Result, error)
}

type Config struct {
	Concurrency        int
	JobTimeout         time.Duration
	MaxAttempts        int
	RetryBaseDelay     time.Duration
	RetryBackoffFactor float64
	RetryJitter        time.Duration
	PollTimeout        time.Duration
}

// Deps are the collaborators a worker needs to run a job.
type Deps struct {
	Queue     Queue
	Status    StatusStore
	Fetcher   Fetcher
	Converter Converter
	Sink      storage.ResultSink
}

type Worker struct {
	cfg  Config
	deps Deps
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
	rnd  *rand.Rand
	mu   sync.Mutex
}

func New(cfg Config, deps Deps) *Worker {
	if cfg.Concurrency <= 0 { cfg.Concurrency = 2 }
	if cfg.MaxAttempts <= 0 { cfg.MaxAttempts = 3 }
	if cfg.RetryBaseDelay <= 0 { cfg.RetryBaseDelay = 2 * time.Second }
	if cfg.RetryBackoffFactor < 1 { cfg.RetryBackoffFactor = 2 }
	if cfg.PollTimeout <= 0 { cfg.PollTimeout = 2 * time.Second }
	return &Worker{cfg: cfg, deps: deps, stop: make(chan struct{}), rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (w *Worker) Start() {
	for i := 0; i < w.cfg.Concurrency; i++ {
		w.wg.Add(1)
		go w.loop(i)
	}
}

// Stop signals the workers and waits for in-flight jobs or ctx.
func (w *Worker) Stop(ctx context.Context) error {
	w.once.Do(func() { close(w.stop) })
	done := make(chan struct{})
	go func() { w.wg.Wait(); close(done) }()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop(id int) {
	defer w.wg.Done()
	consumer := consumerName(id)
	log.Info().Int("worker", id).Msg("dispatcher worker started")
	for {
		select {
		case <-w.stop:
			log.Info().Int("worker", id).Msg("dispatcher worker stopped")
			return
		default:
		}

		msgID, data, err := w.deps.Queue.Dequeue(context.Background(), consumer, w.cfg.PollTimeout)
		if err != nil {
			log.Error().Err(err).Msg("queue dequeue error")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if msgID == "" { continue }

		w.Handle(context.Background(), data)
		if err := w.deps.Queue.Ack(context.Background(), msgID); err != nil {
			log.Error().Err(err).Str("msg_id", msgID).Msg("ack failed")
		}
	}
}

// Handle runs one stream payload to a terminal state or a scheduled retry.
func (w *Worker) Handle(ctx context.Context, payload []byte) {
	job, err := queue.ParseJob(payload)
	if err != nil {
		metrics.IncJob("invalid")
		log.Error().Err(err).Msg("dropping malformed job")
		_ = w.deps.Queue.AddDLQ(ctx, payload, (&ValidationError{Message: err.Error()}).Error())
		return
	}
	jl := logger.ForJob(job.JobID)
	ctx = logger.WithJob(ctx, job.JobID)

	if cancelled, _ := w.deps.Queue.IsCancelled(ctx, job.JobID); cancelled {
		metrics.IncJob("cancelled")
		jl.Warn().Msg("job cancelled before processing; skipping")
		w.setStatus(ctx, job.JobID, store.StateCancelled, 0, "cancelled", nil)
		return
	}

	if done, _ := w.deps.Queue.IsDone(ctx, job.IdempotencyKey); done {
		metrics.IncJob("duplicate")
		jl.Info().Str("key", job.IdempotencyKey).Msg("job already completed; skipping redelivery")
		return
	}

	job.Attempt++
	w.setStatus(ctx, job.JobID, store.StateProcessing, 10, "fetching input", map[string]interface{}{"attempt": job.Attempt})

	meta, err := w.process(ctx, job)
	if err == nil {
		metrics.IncJob("success")
		if err := w.deps.Queue.MarkDone(ctx, job.IdempotencyKey, doneTTL); err != nil {
			jl.Warn().Err(err).Msg("could not record completion")
		}
		jl.Info().Interface("result", meta["result"]).Int("attempt", job.Attempt).Msg("job completed")
		w.setStatus(ctx, job.JobID, store.StateCompleted, 100, "done", meta)
		return
	}
	w.fail(ctx, job, payload, err)
}

func (w *Worker) process(ctx context.Context, job queue.ConvertJob) (map[string]interface{}, error) {
	if w.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.JobTimeout)
		defer cancel()
	}

	data, name, err := w.deps.Fetcher.Fetch(ctx, job.InputRef)
	if err != nil { return nil, err }
	if job.Name != "" { name = job.Name }

	w.setStatus(ctx, job.JobID, store.StateProcessing, 40, "converting", nil)
	res, err := w.deps.Converter.Convert(ctx, pipeline.Input{Data: data, Name: name, Format: job.Format})
	if err != nil { return nil, err }

	w.setStatus(ctx, job.JobID, store.StateProcessing, 90, "saving result", nil)
	loc, err := w.deps.Sink.SaveResult(ctx, job.JobID, res.Format, res.ContentType, res.Output)
	if err != nil { return nil, err }

	meta := map[string]interface{}{
		"result":       loc,
		"format":       res.Format,
		"content_type": res.ContentType,
		"file_name":    res.FileName,
		"pages":        res.Pages,
		"tables":       len(res.Content.Tables),
		"stage":        string(res.Content.Source),
		"cache_hit":    res.CacheHit,
	}
	if res.Diagnostics.ImageBased() {
		meta["warning"] = pipeline.HintImageBased
	}
	return meta, nil
}

func (w *Worker) fail(ctx context.Context, job queue.ConvertJob, payload []byte, err error) {
	jl := logger.ForJob(job.JobID)
	hint := pipeline.HintGeneric
	var cerr *pipeline.ConversionError
	if errors.As(err, &cerr) { hint = cerr.Hint }

	fatal := isFatalError(err)
	if !fatal && job.Attempt < w.cfg.MaxAttempts {
		delay := w.backoff(job.Attempt)
		qerr := w.deps.Queue.EnqueueDelayed(ctx, job, time.Now().Add(delay))
		if qerr == nil {
			metrics.IncRetry()
			jl.Warn().Err(err).Int("attempt", job.Attempt).Dur("delay", delay).Msg("job failed; retry scheduled")
			w.setStatus(ctx, job.JobID, store.StateRetrying, 0, err.Error(), map[string]interface{}{"attempt": job.Attempt})
			return
		}
		jl.Error().Err(qerr).Msg("could not schedule retry")
	}
	if !fatal {
		err = &AttemptsExhaustedError{Attempts: job.Attempt, Err: err}
	}

	metrics.IncJob("failed")
	jl.Error().Err(err).Int("attempt", job.Attempt).Bool("fatal", fatal).Msg("job failed")
	_ = w.deps.Queue.AddDLQ(ctx, payload, err.Error())
	w.setStatus(ctx, job.JobID, store.StateFailed, 0, err.Error(), map[string]interface{}{"hint": hint})
}

// backoff is base * factor^(attempt-1) plus up to RetryJitter.
func (w *Worker) backoff(attempt int) time.Duration {
	if attempt < 1 { attempt = 1 }
	d := time.Duration(float64(w.cfg.RetryBaseDelay) * math.Pow(w.cfg.RetryBackoffFactor, float64(attempt-1)))
	if w.cfg.RetryJitter > 0 {
		w.mu.Lock()
		d += time.Duration(w.rnd.Int63n(int64(w.cfg.RetryJitter)))
		w.mu.Unlock()
	}
	return d
}

func (w *Worker) setStatus(ctx context.Context, jobID, state string, progress int, msg string, meta map[string]interface{}) {
	if w.deps.Status == nil { return }
	if err := w.deps.Status.Update(ctx, jobID, state, progress, msg, meta); err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Str("state", state).Msg("status update failed")
	}
}

func consumerName(id int) string {
	host, _ := os.Hostname()
	if host == "" { host = "pdfdeck" }
	return fmt.Sprintf("%s-%d-%d", host, os.Getpid(), id)
}
