package commands

import (
	"fmt"

	"github.com/go-errors/errors"
	"golang.org/x/xerrors"
)

// Process exit codes for the whole invocation.
const (
	ExitOK          = 0
	ExitConfig      = 1 // configuration or CLI error
	ExitExec        = 2 // a remote or local command exited non-zero
	ExitConnect     = 3 // a transport failure prevented execution
	ExitInterrupted = 130
)

// WrapError wraps an error for the sake of showing a stack trace at the top level
// the go-errors package, for some reason, does not return nil when you try to wrap
// a non-error, so we're just doing it here
func WrapError(err error) error {
	if err == nil {
		return err
	}

	return errors.Wrap(err, 0)
}

// ComplexError an error which carries a code so that calling code has an easier job to do
// adapted from https://medium.com/yakka/better-go-error-handling-with-xerrors-1987650e0c79
type ComplexError struct {
	Message string
	Code    int
	frame   xerrors.Frame
}

// FormatError is a function
func (ce ComplexError) FormatError(p xerrors.Printer) error {
	p.Printf("%d %s", ce.Code, ce.Message)
	ce.frame.Format(p)
	return nil
}

// Format is a function
func (ce ComplexError) Format(f fmt.State, c rune) {
	xerrors.FormatError(ce, f, c)
}

func (ce ComplexError) Error() string {
	return ce.Message
}

// HasErrorCode is a function
func HasErrorCode(err error, code int) bool {
	var originalErr ComplexError
	if xerrors.As(err, &originalErr) {
		return originalErr.Code == code
	}
	return false
}

func configErrorf(format string, a ...interface{}) error {
	return ComplexError{
		Message: fmt.Sprintf(format, a...),
		Code:    ExitConfig,
		frame:   xerrors.Caller(1),
	}
}

func connectErrorf(format string, a ...interface{}) error {
	return ComplexError{
		Message: fmt.Sprintf(format, a...),
		Code:    ExitConnect,
		frame:   xerrors.Caller(1),
	}
}

func interruptedError(message string) error {
	return ComplexError{
		Message: message,
		Code:    ExitInterrupted,
		frame:   xerrors.Caller(1),
	}
}

// ExitError reports a process that terminated with a non-zero status.
type ExitError struct {
	Status int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Status)
}

// ExitCodeOf maps an error to the invocation's process exit code.
func ExitCodeOf(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if xerrors.As(err, &exitErr) {
		return ExitExec
	}
	var complexErr ComplexError
	if xerrors.As(err, &complexErr) {
		return complexErr.Code
	}
	return ExitConfig
}
