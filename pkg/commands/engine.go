package commands

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/AlexMikhalev/stackup/pkg/i18n"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// Engine drives a plan to completion: it owns one client per host for the
// whole invocation, feeds each command of the plan through the dispatcher in
// declared order, and maps the outcomes to a single error whose code is the
// process exit code.
//
// Per invocation it moves through: executing command i, advancing on
// success; stopping at the first failed command; or aborting when the
// context is canceled. Every one of those ends closes every open client.
type Engine struct {
	Log       *logrus.Entry
	OSCommand *OSCommand
	Tr        *i18n.TranslationSet

	// NewClient makes the per-host transport. Swapped out in tests.
	NewClient func(host Host, log *logrus.Entry) Client

	Stdout io.Writer
	Stderr io.Writer
	Grace  time.Duration
}

// NewEngine makes an engine with the real SSH transport.
func NewEngine(log *logrus.Entry, osCommand *OSCommand, tr *i18n.TranslationSet) *Engine {
	return &Engine{
		Log:       log,
		OSCommand: osCommand,
		Tr:        tr,
		NewClient: func(host Host, log *logrus.Entry) Client {
			return NewSSHClient(host, log)
		},
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Execute runs every command of the plan. The returned error is nil only if
// every command reported zero on every selected host.
func (e *Engine) Execute(ctx context.Context, plan *Plan) error {
	out := NewOutput(plan.Hosts, plan.DisablePrefix, e.Stdout, e.Stderr)

	clients := make([]Client, len(plan.Hosts))
	for i, host := range plan.Hosts {
		clients[i] = e.NewClient(host, e.Log)
	}
	local := NewLocalhostClient(e.Log, e.OSCommand)

	defer func() {
		for _, client := range clients {
			_ = client.Close()
		}
		_ = local.Close()
	}()

	dispatcher := &Dispatcher{
		Log:       e.Log,
		Out:       out,
		OSCommand: e.OSCommand,
		Tr:        e.Tr,
		Grace:     e.Grace,
	}

	for _, cmd := range plan.Commands {
		e.Log.WithField("command", cmd.Name).Info(e.tr().RunningCommand)

		inv, err := Compile(cmd, plan)
		if err != nil {
			return err
		}

		results := dispatcher.Dispatch(ctx, inv, clients, local)
		if ctx.Err() != nil {
			return interruptedError(e.tr().Interrupted)
		}
		if err := aggregate(results); err != nil {
			e.Log.WithField("command", cmd.Name).Error(e.tr().CommandFailed)
			return err
		}
	}

	return nil
}

func (e *Engine) tr() *i18n.TranslationSet {
	if e.Tr != nil {
		return e.Tr
	}
	return i18n.EnglishTranslationSet()
}

// aggregate reduces a command's per-host outcomes to one error. An execution
// failure wins over a connect failure, matching how the exit codes are
// documented.
func aggregate(results map[string]error) error {
	var connectErr, execErr error
	for _, err := range results {
		if err == nil {
			continue
		}
		if HasErrorCode(err, ExitConnect) {
			connectErr = err
			continue
		}
		var exitErr *ExitError
		if xerrors.As(err, &exitErr) {
			execErr = err
			continue
		}
		// upload and wrapper failures count as execution failures
		execErr = ComplexError{Message: err.Error(), Code: ExitExec}
	}
	if execErr != nil {
		return execErr
	}
	return connectErr
}
