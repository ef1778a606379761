package statuscheck

import (
    "context"
    "errors"
    "time"
)

// Pinger models the minimal capability we need for connectivity checks.
type Pinger interface {
    Ping(ctx context.Context) error
}

// Probe reports whether a local tool can be used.
type Probe interface {
    IsAvailable() bool
}

// Checker aggregates health checks for the services a conversion may touch.
type Checker struct {
    redis       Pinger
    s3          Pinger
    libreOffice Probe
    mupdf       Probe
    timeout     time.Duration
}

// Options configures the Checker. Nil entries are reported as not configured.
type Options struct {
    Redis       Pinger
    S3          Pinger
    LibreOffice Probe
    MuPDF       Probe
    Timeout     time.Duration
}

// Status represents the readiness of a subsystem.
type Status struct {
    OK      bool   `json:"ok"`
    Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
    Redis       Status `json:"redis"`
    S3          Status `json:"s3"`
    LibreOffice Status `json:"libreoffice"`
    MuPDF       Status `json:"mupdf"`
}

// Ready is true when the synchronous conversion path can run. Redis and S3
// only back the async mode.
func (s Summary) Ready() bool { return s.MuPDF.OK }

func New(opts Options) *Checker {
    if opts.Timeout <= 0 { opts.Timeout = 3 * time.Second }
    return &Checker{redis: opts.Redis, s3: opts.S3, libreOffice: opts.LibreOffice, mupdf: opts.MuPDF, timeout: opts.Timeout}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
    return Summary{
        Redis:       c.ping(ctx, c.redis),
        S3:          c.ping(ctx, c.s3),
        LibreOffice: probe(c.libreOffice, "Binary not found"),
        MuPDF:       probe(c.mupdf, "Not available"),
    }
}

func (c *Checker) ping(ctx context.Context, p Pinger) Status {
    if p == nil {
        return Status{OK: false, Message: "Not configured"}
    }
    ctx, cancel := context.WithTimeout(ctx, c.timeout)
    defer cancel()
    if err := p.Ping(ctx); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Connected"}
}

func probe(p Probe, missing string) Status {
    if p == nil {
        return Status{OK: false, Message: "Not configured"}
    }
    if !p.IsAvailable() {
        return Status{OK: false, Message: missing}
    }
    return Status{OK: true, Message: "Available"}
}

func trimError(err error) string {
    if err == nil {
        return ""
    }
    var netErr interface{ Timeout() bool }
    if errors.As(err, &netErr) && netErr.Timeout() {
        return "timeout"
    }
    if errors.Is(err, context.DeadlineExceeded) {
        return "timeout"
    }
    msg := err.Error()
    if len(msg) > 120 {
        return msg[:120]
    }
    return msg
}
