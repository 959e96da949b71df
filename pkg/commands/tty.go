package commands

import (
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/boz/go-throttle"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// terminalSize reports the invoker's terminal dimensions, with a sane
// fallback when stdout isn't a terminal.
func terminalSize() (width, height int) {
	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 || h <= 0 {
		return 80, 40
	}
	return w, h
}

// attachTerminal wires the invoker's terminal to a process running with a
// PTY: raw mode on the local terminal, stdio copied both ways, and window
// resizes forwarded. The returned restore function undoes the terminal state
// and must run on every exit path, so callers defer it immediately.
func attachTerminal(proc Process, log *logrus.Entry) (restore func(), err error) {
	fd := int(os.Stdin.Fd())
	var state *term.State
	if term.IsTerminal(fd) {
		state, err = term.MakeRaw(fd)
		if err != nil {
			return nil, WrapError(err)
		}
	}

	go func() { _, _ = io.Copy(proc.Stdin(), os.Stdin) }()
	go func() { _, _ = io.Copy(os.Stdout, proc.Stdout()) }()
	go func() { _, _ = io.Copy(os.Stderr, proc.Stderr()) }()

	stopResizes := forwardResizes(proc, log)

	return func() {
		stopResizes()
		if state != nil {
			_ = term.Restore(fd, state)
		}
	}, nil
}

// forwardResizes pushes terminal size changes to the process's PTY,
// throttled so a drag-resize doesn't flood the channel.
func forwardResizes(proc Process, log *logrus.Entry) (stop func()) {
	wc, ok := proc.(windowChanger)
	if !ok {
		return func() {}
	}

	push := throttle.ThrottleFunc(100*time.Millisecond, true, func() {
		width, height := terminalSize()
		if err := wc.WindowChange(height, width); err != nil {
			log.WithError(err).Debug("window change failed")
		}
	})

	ch := make(chan os.Signal, 1)
	notifyWinch(ch)
	go func() {
		for range ch {
			push.Trigger()
		}
	}()

	return func() {
		signal.Stop(ch)
		close(ch)
		push.Stop()
	}
}
