package commands

import "os"

// windows has no SIGWINCH; the remote PTY keeps its initial size.
func notifyWinch(ch chan os.Signal) {}
