package commands

import "fmt"

// Exit codes follow the conventions of classic policy tooling: 1 for
// invalid content or a failed run, 2 for caller mistakes such as
// missing arguments or bad selectors.
const (
	exitInvalid = 1
	exitUsage   = 2
)

// ExitError carries a process exit code through cobra's error return.
// main inspects it to choose the status the process terminates with.
type ExitError struct {
	Code int
	Err  error
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e *ExitError) Unwrap() error { return e.Err }

// usageErrorf reports a caller mistake.
func usageErrorf(format string, args ...interface{}) *ExitError {
	return &ExitError{Code: exitUsage, Err: fmt.Errorf(format, args...)}
}

// invalidErrorf reports invalid policy content or a failed run.
func invalidErrorf(format string, args ...interface{}) *ExitError {
	return &ExitError{Code: exitInvalid, Err: fmt.Errorf(format, args...)}
}
