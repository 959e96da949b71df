package commands

import (
	"io"
	"os/exec"

	"github.com/sirupsen/logrus"
)

// LocalhostClient runs commands on the invoker's machine under the same
// Process contract the SSH client provides, so the dispatcher doesn't care
// where a command lands. It backs every `local` command; the tar producers
// of uploads are spawned by the dispatcher through OSCommand directly.
type LocalhostClient struct {
	Log       *logrus.Entry
	OSCommand *OSCommand
}

var _ Client = (*LocalhostClient)(nil)

func NewLocalhostClient(log *logrus.Entry, osCommand *OSCommand) *LocalhostClient {
	return &LocalhostClient{
		Log:       log.WithField("host", LocalName),
		OSCommand: osCommand,
	}
}

// Name is the fixed prefix for locally produced output.
func (c *LocalhostClient) Name() string {
	return LocalName
}

// Run spawns the script under the platform's default shell.
func (c *LocalhostClient) Run(spec ProcSpec) (Process, error) {
	cmd := c.OSCommand.ShellCmd(spec.Script)
	c.OSCommand.PrepareForChildren(cmd)

	proc := &localProcess{cmd: cmd, osCommand: c.OSCommand}

	if spec.Stdin != nil {
		cmd.Stdin = spec.Stdin
		proc.stdin = nopWriteCloser{}
	} else {
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, WrapError(err)
		}
		proc.stdin = stdin
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, WrapError(err)
	}
	proc.stdout = stdout

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, WrapError(err)
	}
	proc.stderr = stderr

	c.Log.WithField("script", spec.Script).Debug("starting local process")
	if err := cmd.Start(); err != nil {
		return nil, WrapError(err)
	}

	return proc, nil
}

// Upload extracts a tar stream under dst on the local filesystem. It only
// exists to satisfy the Client contract; the compiler never routes an upload
// to the local venue.
func (c *LocalhostClient) Upload(stream io.Reader, dst string) (Process, error) {
	return c.Run(ProcSpec{
		Script: RemoteTarCommand(dst),
		Stdin:  stream,
	})
}

// Close is a no-op; there is no connection to tear down.
func (c *LocalhostClient) Close() error {
	return nil
}

type localProcess struct {
	cmd       *exec.Cmd
	osCommand *OSCommand
	stdin     io.WriteCloser
	stdout    io.Reader
	stderr    io.Reader
}

func (p *localProcess) Stdout() io.Reader     { return p.stdout }
func (p *localProcess) Stderr() io.Reader     { return p.stderr }
func (p *localProcess) Stdin() io.WriteCloser { return p.stdin }

func (p *localProcess) Wait() error {
	err := p.cmd.Wait()
	if err == nil {
		return nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return &ExitError{Status: exitErr.ExitCode()}
	}
	return WrapError(err)
}

// Terminate kills the process group, so children spawned by the shell go
// down with it.
func (p *localProcess) Terminate() error {
	p.stdin.Close()
	return p.osCommand.Kill(p.cmd)
}
