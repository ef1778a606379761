package logger

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "sync"
    "time"

    "github.com/axiomhq/axiom-go/axiom"
    "github.com/axiomhq/axiom-go/axiom/ingest"
    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
    lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "pdfdeck"

// Options defines logger initialization parameters.
type Options struct {
    Level        string
    Pretty       bool
    File         string
    MaxSizeMB    int
    MaxBackups   int
    MaxAgeDays   int
    Compress     bool

    SendToAxiom  bool
    AxiomAPIKey  string
    AxiomOrgID   string
    AxiomDataset string
    AxiomFlush   time.Duration

    // Console overrides stdout; tests point it at a buffer.
    Console io.Writer
}

var (
    mu      sync.Mutex
    shipper *axiomShipper
)

// Init replaces the global zerolog logger. Events go to the console, to a
// rotated file when File is set and, at info and above, to Axiom.
func Init(opts Options) error {
    var writers []io.Writer

    if opts.File != "" {
        if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
            return fmt.Errorf("create logs dir: %w", err)
        }
        writers = append(writers, &lumberjack.Logger{
            Filename:   opts.File,
            MaxSize:    opts.MaxSizeMB,
            MaxBackups: opts.MaxBackups,
            MaxAge:     opts.MaxAgeDays,
            Compress:   opts.Compress,
        })
    }

    console := opts.Console
    if console == nil { console = os.Stdout }
    if opts.Pretty {
        console = zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}
    }
    writers = append(writers, console)

    Close()
    if opts.SendToAxiom && opts.AxiomAPIKey != "" {
        s, err := newAxiomShipper(opts.AxiomAPIKey, opts.AxiomOrgID, opts.AxiomDataset, opts.AxiomFlush)
        if err != nil {
            fmt.Fprintf(os.Stderr, "axiom disabled: %v\n", err)
        } else {
            mu.Lock()
            shipper = s
            mu.Unlock()
            writers = append(writers, &minLevelWriter{w: s, min: zerolog.InfoLevel})
        }
    }

    lvl, err := zerolog.ParseLevel(opts.Level)
    if err != nil || opts.Level == "" { lvl = zerolog.InfoLevel }

    zerolog.TimeFieldFormat = time.RFC3339
    log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
        Level(lvl).
        With().Timestamp().Str("service", serviceName).
        Logger()
    zerolog.DefaultContextLogger = &log.Logger
    return nil
}

// Close flushes and stops the Axiom shipper, if any.
func Close() {
    mu.Lock()
    s := shipper
    shipper = nil
    mu.Unlock()
    if s != nil { s.close() }
}

// Get returns the global logger.
func Get() *zerolog.Logger { return &log.Logger }

// ForJob returns a child logger tagged with the job id.
func ForJob(jobID string) zerolog.Logger {
    return log.With().Str("job_id", jobID).Logger()
}

// WithJob stores a job-tagged logger in ctx; zerolog.Ctx(ctx) retrieves it.
func WithJob(ctx context.Context, jobID string) context.Context {
    l := ForJob(jobID)
    return l.WithContext(ctx)
}

// minLevelWriter passes on events at or above min and drops the rest.
type minLevelWriter struct {
    w   io.Writer
    min zerolog.Level
}

func (m *minLevelWriter) Write(p []byte) (int, error) { return m.w.Write(p) }

func (m *minLevelWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
    if l < m.min { return len(p), nil }
    return m.w.Write(p)
}

// axiomShipper batches JSON events and ingests them in the background.
type axiomShipper struct {
    client  *axiom.Client
    dataset string
    events  chan axiom.Event
    done    chan struct{}
    wg      sync.WaitGroup
}

const (
    shipBuffer = 1000
    shipBatch  = 200
)

func newAxiomShipper(token, orgID, dataset string, every time.Duration) (*axiomShipper, error) {
    if dataset == "" { dataset = "dev_" + serviceName }
    if every <= 0 { every = 10 * time.Second }
    opts := []axiom.Option{axiom.SetToken(token)}
    if orgID != "" { opts = append(opts, axiom.SetOrganizationID(orgID)) }
    c, err := axiom.NewClient(opts...)
    if err != nil { return nil, err }
    s := &axiomShipper{client: c, dataset: dataset, events: make(chan axiom.Event, shipBuffer), done: make(chan struct{})}
    s.wg.Add(1)
    go s.run(every)
    return s, nil
}

// Write never blocks logging: when the buffer is full the event is dropped.
func (s *axiomShipper) Write(p []byte) (int, error) {
    ev := axiom.Event{}
    if err := json.Unmarshal(p, &ev); err != nil {
        ev = axiom.Event{"message": string(p), "level": "info"}
    }
    if _, ok := ev[ingest.TimestampField]; !ok { ev[ingest.TimestampField] = time.Now() }
    select {
    case s.events <- ev:
    default:
    }
    return len(p), nil
}

func (s *axiomShipper) run(every time.Duration) {
    defer s.wg.Done()
    ticker := time.NewTicker(every)
    defer ticker.Stop()
    batch := make([]axiom.Event, 0, shipBatch)
    flush := func() {
        if len(batch) == 0 { return }
        ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
        _, _ = s.client.IngestEvents(ctx, s.dataset, batch)
        cancel()
        batch = batch[:0]
    }
    for {
        select {
        case <-s.done:
            for {
                select {
                case ev := <-s.events:
                    batch = append(batch, ev)
                default:
                    flush()
                    return
                }
            }
        case <-ticker.C:
            flush()
        case ev := <-s.events:
            batch = append(batch, ev)
            if len(batch) >= shipBatch { flush() }
        }
    }
}

func (s *axiomShipper) close() {
    close(s.done)
    s.wg.Wait()
}
