package extract

import (
    "context"
    "errors"
    "testing"

    "github.com/local/pdfdeck/internal/content"
)

type stubStrategy struct {
    stage content.Stage
    out   *content.ExtractedContent
    err   error
    calls int
    panic bool
}

func (s *stubStrategy) Stage() content.Stage { return s.stage }

func (s *stubStrategy) Extract(context.Context, []byte) (*content.ExtractedContent, error) {
    s.calls++
    if s.panic {
        panic("stage exploded")
    }
    return s.out, s.err
}

func TestCoordinatorFirstSuccessWins(t *testing.T) {
    first := &stubStrategy{stage: content.StageStructured, out: content.New("one", nil, 1, content.StageStructured)}
    second := &stubStrategy{stage: content.StageFallback, out: content.New("two", nil, 1, content.StageFallback)}
    c, rep := NewCoordinator(first, second).ExtractWithReport(context.Background(), nil)
    if c.Text != "one" || rep.Stage != content.StageStructured {
        t.Fatalf("got %q from %s", c.Text, rep.Stage)
    }
    if second.calls != 0 {
        t.Fatalf("fallback ran after structured success")
    }
}

func TestCoordinatorFallsThrough(t *testing.T) {
    first := &stubStrategy{stage: content.StageStructured, err: parseError(errors.New("bad"))}
    second := &stubStrategy{stage: content.StageFallback, out: content.New("two", nil, 1, content.StageFallback)}
    c, rep := NewCoordinator(first, second).ExtractWithReport(context.Background(), nil)
    if c.Text != "two" || rep.Stage != content.StageFallback || len(rep.Failures) != 1 {
        t.Fatalf("got %q %+v", c.Text, rep)
    }
    if first.calls != 1 || second.calls != 1 {
        t.Fatalf("calls %d %d", first.calls, second.calls)
    }
}

func TestCoordinatorAllFailPlaceholder(t *testing.T) {
    first := &stubStrategy{stage: content.StageStructured, err: parseError(errors.New("bad"))}
    second := &stubStrategy{stage: content.StageFallback, panic: true}
    c, rep := NewCoordinator(first, second).ExtractWithReport(context.Background(), []byte("garbage"))
    if c == nil || c.Text == "" {
        t.Fatalf("placeholder missing")
    }
    if c.NumPages != 1 || len(c.Tables) != 0 || c.Source != content.StagePlaceholder {
        t.Fatalf("placeholder %+v", c)
    }
    if rep.Stage != content.StagePlaceholder || len(rep.Failures) != 2 {
        t.Fatalf("report %+v", rep)
    }
    if first.calls != 1 || second.calls != 1 {
        t.Fatalf("each stage must run once: %d %d", first.calls, second.calls)
    }
}

func TestCoordinatorNilContentIsFailure(t *testing.T) {
    first := &stubStrategy{stage: content.StageStructured}
    c := NewCoordinator(first).Extract(context.Background(), nil)
    if c.Source != content.StagePlaceholder {
        t.Fatalf("source %s", c.Source)
    }
}

func TestCoordinatorGarbageBytes(t *testing.T) {
    eng := &fakeEngine{err: errors.New("not a pdf")}
    co := NewCoordinator(NewStructured(NewPDFParser()), NewFallback(eng, t.TempDir()))
    c := co.Extract(context.Background(), []byte("definitely not a pdf"))
    if c.Source != content.StagePlaceholder || c.NumPages != 1 {
        t.Fatalf("got %+v", c)
    }
}
