package commands

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

const sshDialTimeout = 10 * time.Second

// SSHClient is one authenticated session to one remote host. The TCP
// connection is made lazily on the first Run or Upload; a failed connect
// marks the client permanently broken so later commands of a target fail
// fast instead of redialing a dead host.
type SSHClient struct {
	Host Host
	Log  *logrus.Entry

	mu     sync.Mutex
	client *ssh.Client
	broken bool
}

var _ Client = (*SSHClient)(nil)

// NewSSHClient makes a client for one host. Nothing is dialed yet.
func NewSSHClient(host Host, log *logrus.Entry) *SSHClient {
	return &SSHClient{
		Host: host,
		Log:  log.WithField("host", host.Name),
	}
}

// Name is the host's display string.
func (c *SSHClient) Name() string {
	return c.Host.Name
}

// connect dials and authenticates on first use. Authentication only ever
// goes through the invoker's running ssh agent; we neither prompt for
// passwords nor read key files ourselves.
func (c *SSHClient) connect() (*ssh.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken {
		return nil, connectErrorf("%s: connection previously failed", c.Host.Name)
	}
	if c.client != nil {
		return c.client, nil
	}

	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		c.broken = true
		return nil, connectErrorf("%s: SSH_AUTH_SOCK is not set, no ssh agent to authenticate with", c.Host.Name)
	}

	agentConn, err := net.Dial("unix", sock)
	if err != nil {
		c.broken = true
		return nil, connectErrorf("%s: dialing ssh agent: %s", c.Host.Name, err.Error())
	}
	agentClient := agent.NewClient(agentConn)

	config := &ssh.ClientConfig{
		User: c.Host.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeysCallback(agentClient.Signers),
		},
		HostKeyCallback: hostKeyCallback(c.Log),
		Timeout:         sshDialTimeout,
	}

	addr := fmt.Sprintf("%s:%d", c.Host.Addr, c.Host.Port)
	c.Log.WithField("addr", addr).Debug("dialing")
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		agentConn.Close()
		c.broken = true
		return nil, connectErrorf("%s: %s", c.Host.Name, err.Error())
	}

	c.client = client
	return client, nil
}

// hostKeyCallback verifies against the user's known_hosts file. If the file
// can't be read we log and fall back to accepting any key, which is how the
// openssh client behaves with StrictHostKeyChecking off.
func hostKeyCallback(log *logrus.Entry) ssh.HostKeyCallback {
	home, err := os.UserHomeDir()
	if err == nil {
		callback, err := knownhosts.New(filepath.Join(home, ".ssh", "known_hosts"))
		if err == nil {
			return callback
		}
		log.WithError(err).Warn("known_hosts unavailable, host keys will not be verified")
	}
	return ssh.InsecureIgnoreHostKey()
}

// Run opens a session, requests a PTY when asked to, and starts the script.
func (c *SSHClient) Run(spec ProcSpec) (Process, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	session, err := client.NewSession()
	if err != nil {
		return nil, connectErrorf("%s: opening session: %s", c.Host.Name, err.Error())
	}

	proc := &sshProcess{session: session, host: c.Host.Name, tty: spec.TTY}

	if spec.TTY {
		width, height := terminalSize()
		modes := ssh.TerminalModes{
			ssh.ECHO:          1,
			ssh.TTY_OP_ISPEED: 14400,
			ssh.TTY_OP_OSPEED: 14400,
		}
		term := os.Getenv("TERM")
		if term == "" {
			term = "xterm"
		}
		if err := session.RequestPty(term, height, width, modes); err != nil {
			session.Close()
			return nil, connectErrorf("%s: requesting pty: %s", c.Host.Name, err.Error())
		}
	}

	if spec.Stdin != nil {
		session.Stdin = spec.Stdin
		proc.stdin = nopWriteCloser{}
	} else {
		stdin, err := session.StdinPipe()
		if err != nil {
			session.Close()
			return nil, connectErrorf("%s: stdin pipe: %s", c.Host.Name, err.Error())
		}
		proc.stdin = stdin
	}

	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, connectErrorf("%s: stdout pipe: %s", c.Host.Name, err.Error())
	}
	proc.stdout = stdout

	stderr, err := session.StderrPipe()
	if err != nil {
		session.Close()
		return nil, connectErrorf("%s: stderr pipe: %s", c.Host.Name, err.Error())
	}
	proc.stderr = stderr

	c.Log.WithField("script", spec.Script).Debug("starting remote process")
	if err := session.Start(spec.Script); err != nil {
		session.Close()
		return nil, connectErrorf("%s: %s", c.Host.Name, err.Error())
	}

	return proc, nil
}

// Upload starts the remote extraction process for a tar stream.
func (c *SSHClient) Upload(stream io.Reader, dst string) (Process, error) {
	return c.Run(ProcSpec{
		Script: RemoteTarCommand(dst),
		Stdin:  stream,
	})
}

// Close tears down the connection. Idempotent and safe to call from the
// cancellation path.
func (c *SSHClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	c.broken = true
	return err
}

// sshProcess adapts an ssh session to the Process contract.
type sshProcess struct {
	session *ssh.Session
	host    string
	tty     bool
	stdin   io.WriteCloser
	stdout  io.Reader
	stderr  io.Reader

	closeOnce sync.Once
}

func (p *sshProcess) Stdout() io.Reader     { return p.stdout }
func (p *sshProcess) Stderr() io.Reader     { return p.stderr }
func (p *sshProcess) Stdin() io.WriteCloser { return p.stdin }

func (p *sshProcess) Wait() error {
	err := p.session.Wait()
	p.closeOnce.Do(func() { p.session.Close() })
	if err == nil {
		return nil
	}
	if exitErr, ok := err.(*ssh.ExitError); ok {
		return &ExitError{Status: exitErr.ExitStatus()}
	}
	if _, ok := err.(*ssh.ExitMissingError); ok {
		return connectErrorf("%s: session ended without an exit status", p.host)
	}
	return connectErrorf("%s: %s", p.host, err.Error())
}

// Terminate interrupts the remote process: a SIGINT over the channel, plus
// closing stdin for non-TTY processes so well-behaved filters see EOF.
func (p *sshProcess) Terminate() error {
	err := p.session.Signal(ssh.SIGINT)
	if !p.tty {
		p.stdin.Close()
	}
	return err
}

// WindowChange forwards a terminal resize to the remote PTY.
func (p *sshProcess) WindowChange(height, width int) error {
	return p.session.WindowChange(height, width)
}
