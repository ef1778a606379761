package dispatcher

import "fmt"

// ValidationError represents a fatal problem with the job itself
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

// AttemptsExhaustedError wraps the last error of a job that ran out of retries
type AttemptsExhaustedError struct {
	Attempts int
	Err      error
}

func (e *AttemptsExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *AttemptsExhaustedError) Unwrap() error { return e.Err }
