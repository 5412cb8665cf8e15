package chain

import (
	"fmt"
	"strings"
)

// FetchError is returned when an RPC read still fails after the bounded retry
// schedule. It carries the last underlying cause.
type FetchError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("chain fetch %s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

// Unwrap returns the last underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// permanentError marks a failure that must not be retried: contract reverts,
// malformed input, ABI decoding failures.
type permanentError struct {
	err error
}

func (e permanentError) Error() string {
	return e.err.Error()
}

func (e permanentError) Unwrap() error {
	return e.err
}

func permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// isRetryable reports whether an error is worth another attempt. Contract
// reverts and anything explicitly marked permanent propagate immediately;
// everything else is treated as a transport fault.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := err.(permanentError); ok {
		return false
	}
	if strings.Contains(err.Error(), "execution reverted") {
		return false
	}
	return true
}
