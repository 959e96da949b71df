package commands

import "io"

// Client is one logical session to one execution venue: an SSH connection to
// a remote host, or the invoker's own machine. A client connects lazily on
// first use and stays open so that consecutive commands of a target reuse it.
type Client interface {
	// Run starts a process and returns a handle to it. The returned process
	// is already running.
	Run(spec ProcSpec) (Process, error)

	// Upload starts the venue's extraction process for a tar stream: the
	// bytes read from stream are unpacked under the dst directory.
	Upload(stream io.Reader, dst string) (Process, error)

	// Close tears the session down. Idempotent.
	Close() error

	// Name is the display name used to prefix every output line.
	Name() string
}

// ProcSpec describes one process to be spawned by a Client.
type ProcSpec struct {
	// Script is the shell text to run, including the environment export
	// preamble.
	Script string

	// Stdin, when non-nil, is a fixed byte source wired to the process's
	// stdin. The process's stdin pipe is not exposed in that case.
	Stdin io.Reader

	// TTY requests a pseudo-terminal for the process.
	TTY bool
}

// Process is a running remote or local process: its standard streams plus
// termination.
type Process interface {
	Stdout() io.Reader
	Stderr() io.Reader
	Stdin() io.WriteCloser

	// Wait blocks until the process terminates. It returns nil for a zero
	// exit, an *ExitError for a non-zero exit, and a connect-class error if
	// the session died without reporting a status.
	Wait() error

	// Terminate asks the process to stop: an interrupt over the remote
	// channel, or closing stdin for a non-TTY process. Wait still has to be
	// called afterwards.
	Terminate() error
}

// windowChanger is implemented by processes attached to a resizable
// terminal.
type windowChanger interface {
	WindowChange(height, width int) error
}

// nopWriteCloser is handed out as the stdin of processes whose stdin is a
// fixed source; writes to it go nowhere.
type nopWriteCloser struct{}

func (nopWriteCloser) Write(p []byte) (int, error) { return len(p), nil }
func (nopWriteCloser) Close() error                { return nil }
