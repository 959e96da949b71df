package commands

import (
	"bytes"
	"io"

	"github.com/AlexMikhalev/stackup/pkg/utils"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/sasha-s/go-deadlock"
)

// LocalName is the prefix used for output produced on the invoker's machine.
const LocalName = "local"

// hostColors is the palette cycled over the hosts of a plan so that
// interleaved output stays tellable-apart. fatih/color disables itself when
// stdout isn't a terminal, so non-TTY invocations get plain prefixes for
// free.
var hostColors = []color.Attribute{
	color.FgGreen,
	color.FgCyan,
	color.FgMagenta,
	color.FgYellow,
	color.FgBlue,
	color.FgRed,
}

// Output is the shared sink for every host's stdout and stderr. Bytes are
// buffered per (host, stream) and flushed a whole line at a time under one
// lock, so lines from different hosts interleave but never mix within a
// line. Each line gets a fixed-width `<host> | ` prefix unless prefixing is
// disabled.
type Output struct {
	mu     deadlock.Mutex
	stdout io.Writer
	stderr io.Writer
	prefix bool
	width  int
	colors map[string]*color.Color
}

// NewOutput builds the sink for a plan's hosts. The local venue is always
// included, since any command list may contain a local command.
func NewOutput(hosts []Host, disablePrefix bool, stdout, stderr io.Writer) *Output {
	width := runewidth.StringWidth(LocalName)
	colors := map[string]*color.Color{
		LocalName: color.New(color.FgWhite),
	}
	for i, host := range hosts {
		width = utils.Max(width, runewidth.StringWidth(host.Name))
		colors[host.Name] = color.New(hostColors[i%len(hostColors)])
	}

	return &Output{
		stdout: stdout,
		stderr: stderr,
		prefix: !disablePrefix,
		width:  width,
		colors: colors,
	}
}

// StdoutWriter returns the writer a host's stdout bytes go to. Closing it
// flushes a trailing unterminated line.
func (o *Output) StdoutWriter(host string) io.WriteCloser {
	return &lineWriter{out: o, host: host, dst: o.stdout}
}

// StderrWriter is the stderr counterpart of StdoutWriter.
func (o *Output) StderrWriter(host string) io.WriteCloser {
	return &lineWriter{out: o, host: host, dst: o.stderr}
}

func (o *Output) emit(dst io.Writer, host string, line []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.prefix {
		tag := utils.WithPadding(host, o.width) + " | "
		if colour, ok := o.colors[host]; ok {
			tag = utils.ColoredStringDirect(tag, colour)
		}
		_, _ = dst.Write([]byte(tag))
	}
	_, _ = dst.Write(line)
}

// lineWriter accumulates bytes for one (host, stream) pair and hands whole
// lines to the shared sink.
type lineWriter struct {
	out  *Output
	host string
	dst  io.Writer
	buf  bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		data := w.buf.Bytes()
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		line := make([]byte, i+1)
		copy(line, data[:i+1])
		w.buf.Next(i + 1)
		w.out.emit(w.dst, w.host, line)
	}
	return len(p), nil
}

// Close flushes whatever the process left unterminated.
func (w *lineWriter) Close() error {
	if w.buf.Len() > 0 {
		line := append(w.buf.Bytes(), '\n')
		w.buf.Reset()
		w.out.emit(w.dst, w.host, line)
	}
	return nil
}
