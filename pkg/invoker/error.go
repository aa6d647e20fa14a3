package invoker

import (
	"fmt"
	"strings"
	"time"
)

// UnavailableError means the child process could not be started at all,
// which points at the deployment rather than the input image.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("failed to start AI model process: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

type ExecutionError struct {
	ExitCode int
	Stderr   string
}

func (e *ExecutionError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" {
		return fmt.Sprintf("model process failed with code %d", e.ExitCode)
	}
	return fmt.Sprintf("model process failed with code %d: %s", e.ExitCode, stderr)
}

type TimeoutError struct {
	Timeout time.Duration
	Stderr  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("model process timed out after %s", e.Timeout)
}
