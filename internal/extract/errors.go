package extract

import (
    "errors"
    "fmt"

    "github.com/local/pdfdeck/internal/content"
)

// Reason classifies why an extraction stage gave up.
type Reason string

const (
    ReasonParse    Reason = "parse_error"
    ReasonFallback Reason = "fallback_error"
)

// ExtractionError is the failure of a single stage. The coordinator consumes
// it; it never escapes a conversion.
type ExtractionError struct {
    Stage  content.Stage
    Reason Reason
    Err    error
}

func (e *ExtractionError) Error() string {
    return fmt.Sprintf("%s extraction failed (%s): %v", e.Stage, e.Reason, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ReasonOf returns the classification carried by err, if any.
func ReasonOf(err error) (Reason, bool) {
    var ee *ExtractionError
    if errors.As(err, &ee) {
        return ee.Reason, true
    }
    return "", false
}

func parseError(err error) error {
    return &ExtractionError{Stage: content.StageStructured, Reason: ReasonParse, Err: err}
}

func fallbackError(err error) error {
    return &ExtractionError{Stage: content.StageFallback, Reason: ReasonFallback, Err: err}
}
