//go:build !windows
// +build !windows

package commands

import (
	"os"
	"os/signal"
	"syscall"
)

func notifyWinch(ch chan os.Signal) {
	signal.Notify(ch, syscall.SIGWINCH)
}
