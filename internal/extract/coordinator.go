package extract

import (
    "context"
    "fmt"
    "time"

    "github.com/local/pdfdeck/internal/content"
    "github.com/local/pdfdeck/internal/metrics"
    "github.com/rs/zerolog/log"
)

// Strategy is one stage of the extraction chain.
type Strategy interface {
    Stage() content.Stage
    Extract(ctx context.Context, data []byte) (*content.ExtractedContent, error)
}

// Attempt records a failed stage.
type Attempt struct {
    Stage content.Stage `json:"stage"`
    Error string        `json:"error"`
}

// Report describes how a document was extracted.
type Report struct {
    Stage    content.Stage `json:"stage"`
    Failures []Attempt     `json:"failures,omitempty"`
    Duration time.Duration `json:"duration"`
}

// Coordinator runs strategies in order and keeps the first success. When all
// of them fail the placeholder content is returned, so extraction itself
// never fails.
type Coordinator struct {
    strategies []Strategy
}

func NewCoordinator(strategies ...Strategy) *Coordinator {
    return &Coordinator{strategies: strategies}
}

func (c *Coordinator) Extract(ctx context.Context, data []byte) *content.ExtractedContent {
    out, _ := c.ExtractWithReport(ctx, data)
    return out
}

func (c *Coordinator) ExtractWithReport(ctx context.Context, data []byte) (*content.ExtractedContent, Report) {
    start := time.Now()
    rep := Report{}
    for _, s := range c.strategies {
        out, err := runStage(ctx, s, data)
        if err == nil && out != nil {
            metrics.IncExtraction(string(s.Stage()), "success")
            rep.Stage = s.Stage()
            rep.Duration = time.Since(start)
            log.Info().Str("stage", string(s.Stage())).Int("pages", out.NumPages).Int("chars", len(out.Text)).Dur("took", rep.Duration).Msg("extraction succeeded")
            return out, rep
        }
        if err == nil { err = fmt.Errorf("no content returned") }
        metrics.IncExtraction(string(s.Stage()), "failure")
        ev := log.Warn().Err(err).Str("stage", string(s.Stage()))
        if r, ok := ReasonOf(err); ok { ev = ev.Str("reason", string(r)) }
        ev.Msg("extraction stage failed")
        rep.Failures = append(rep.Failures, Attempt{Stage: s.Stage(), Error: err.Error()})
    }

    metrics.IncExtraction(string(content.StagePlaceholder), "success")
    rep.Stage = content.StagePlaceholder
    rep.Duration = time.Since(start)
    log.Warn().Int("failed_stages", len(rep.Failures)).Msg("all extractors failed, using placeholder")
    return Placeholder(), rep
}

// runStage isolates a strategy so a panic counts as its failure.
func runStage(ctx context.Context, s Strategy, data []byte) (out *content.ExtractedContent, err error) {
    defer func() {
        if r := recover(); r != nil {
            out, err = nil, fmt.Errorf("%s stage panic: %v", s.Stage(), r)
        }
    }()
    return s.Extract(ctx, data)
}

// Placeholder is the terminal result of the chain.
func Placeholder() *content.ExtractedContent {
    return content.New(content.PlaceholderText, nil, 1, content.StagePlaceholder)
}
