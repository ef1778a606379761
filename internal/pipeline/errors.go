package pipeline

import (
    "fmt"
    "strings"
)

// User-facing hints attached to conversion failures.
const (
    HintPassword   = "The PDF appears to be password-protected. Remove the password and upload it again."
    HintImageBased = "The PDF appears to be image-based (scanned). Export it with a text layer and try again."
    HintGeneric    = "The presentation could not be generated. Check that the file is a valid PDF and try again."
)

// ConversionError is the single terminal error a conversion can return once
// extraction has run. Op names the failing step ("render", "resolve format").
type ConversionError struct {
    Op   string
    Err  error
    Hint string
}

func (e *ConversionError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *ConversionError) Unwrap() error { return e.Err }

func newConversionError(op string, err error) *ConversionError {
    return &ConversionError{Op: op, Err: err, Hint: HintFor(err)}
}

// HintFor picks a hint from the wording of err.
func HintFor(err error) string {
    if err == nil { return "" }
    msg := strings.ToLower(err.Error())
    switch {
    case strings.Contains(msg, "password"):
        return HintPassword
    case strings.Contains(msg, "image-based"):
        return HintImageBased
    default:
        return HintGeneric
    }
}
