package dispatcher

import (
	"context"
	"errors"
	"io/fs"
	"strings"

	"github.com/local/pdfdeck/internal/filetype"
	"github.com/local/pdfdeck/internal/storage"
)

// isTransientError checks if error is worth another attempt
func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	// Timeout errors
	if isTimeoutError(err) {
		return true
	}

	// HTTP errors
	var httpErr *storage.HTTPStatusError
	if errors.As(err, &httpErr) {
		// 5xx server errors are transient
		if httpErr.StatusCode >= 500 && httpErr.StatusCode < 600 {
			return true
		}
		// 429 rate limit is transient
		if httpErr.StatusCode == 429 {
			return true
		}
	}

	// Network errors (connection issues, timeouts)
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "eof") {
		return true
	}

	return false
}

// isFatalError checks if error is fatal and should not be retried
func isFatalError(err error) bool {
	if err == nil {
		return false
	}
	if isTransientError(err) {
		return false
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return true
	}
	var inputErr *filetype.ValidationError
	if errors.As(err, &inputErr) {
		return true
	}
	var tooLarge *storage.ErrTooLarge
	if errors.As(err, &tooLarge) {
		return true
	}
	var outside *storage.ErrOutsideDir
	if errors.As(err, &outside) {
		return true
	}
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}

	// HTTP 4xx errors (except 429)
	var httpErr *storage.HTTPStatusError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 {
			return true
		}
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "password") ||
		strings.Contains(errStr, "not configured") ||
		strings.Contains(errStr, "invalid s3 url") ||
		strings.Contains(errStr, "nosuchkey") {
		return true
	}

	return false
}

// isTimeoutError checks if error is specifically a timeout
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}
