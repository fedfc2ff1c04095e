package cli

import "fmt"

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
// Hint, when set, is printed after the error as remediation advice.
type ExitError struct {
	Code int
	Err  error
	Hint string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("exit status %d", e.Code)
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Hint != "" {
		msg += "\n\n" + e.Hint
	}
	return msg
}

func (e *ExitError) Unwrap() error {
	return e.Err
}
