package commands

import (
	"os"
	"os/exec"

	"github.com/jesseduffield/kill"
	"github.com/mgutz/str"
	"github.com/sirupsen/logrus"
)

// Platform stores the os state
type Platform struct {
	os       string
	shell    string
	shellArg string
}

// OSCommand holds all the os commands
type OSCommand struct {
	Log      *logrus.Entry
	Platform *Platform
	command  func(string, ...string) *exec.Cmd
	getenv   func(string) string
}

// NewOSCommand os command runner
func NewOSCommand(log *logrus.Entry) *OSCommand {
	return &OSCommand{
		Log:      log,
		Platform: getPlatform(),
		command:  exec.Command,
		getenv:   os.Getenv,
	}
}

// SetCommand sets the command function used by the struct.
// To be used for testing only
func (c *OSCommand) SetCommand(cmd func(string, ...string) *exec.Cmd) {
	c.command = cmd
}

// ExecutableFromString takes a string like `tar -C . -cf - dist` and returns
// an executable command for it, without involving a shell
func (c *OSCommand) ExecutableFromString(commandStr string) *exec.Cmd {
	splitCmd := str.ToArgv(commandStr)
	return c.NewCmd(splitCmd[0], splitCmd[1:]...)
}

func (c *OSCommand) NewCmd(cmdName string, commandArgs ...string) *exec.Cmd {
	cmd := c.command(cmdName, commandArgs...)
	cmd.Env = os.Environ()
	return cmd
}

// ShellCmd returns a command that runs the given script under the platform's
// default shell
func (c *OSCommand) ShellCmd(script string) *exec.Cmd {
	return c.NewCmd(c.Platform.shell, c.Platform.shellArg, script)
}

// Kill kills a process. If the process has Setpgid == true, then we have
// anticipated that it might spawn its own child processes, so we've given it a
// process group ID (PGID) equal to its process id (PID), and given its child
// processes will inherit the PGID, we can kill that group, rather than killing
// the process itself.
func (c *OSCommand) Kill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		// somebody got to it before we were able to, poor bastard
		return nil
	}
	return kill.Kill(cmd)
}

// PrepareForChildren sets Setpgid to true on the cmd, so that when we kill it,
// we can kill its group rather than the process itself. This is because shell
// scripts spawn child processes, and killing the shell isn't sufficient for
// killing those children.
func (c *OSCommand) PrepareForChildren(cmd *exec.Cmd) {
	kill.PrepareForChildren(cmd)
}
