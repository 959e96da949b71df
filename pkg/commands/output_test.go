package commands

import (
	"bytes"
	"os"
	"fmt"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"
)

// TestMain pins color handling so expectations hold under a TTY too.
func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func planHosts(names ...string) []Host {
	hosts := make([]Host, len(names))
	for i, name := range names {
		host, _ := ParseHost(name, "deployer")
		hosts[i] = host
	}
	return hosts
}

func assertMultiline(t *testing.T, expected, actual string) {
	t.Helper()
	if expected == actual {
		return
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  3,
	})
	t.Fatalf("output mismatch:\n%s", diff)
}

// TestOutputPrefixing is a function.
func TestOutputPrefixing(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := NewOutput(planHosts("a@h1", "a@host2"), false, &stdout, &stderr)

	w := out.StdoutWriter("a@h1")
	fmt.Fprintln(w, "hello")
	w.Close()

	e := out.StderrWriter("a@host2")
	fmt.Fprintln(e, "oops")
	e.Close()

	assertMultiline(t, "a@h1    | hello\n", stdout.String())
	assertMultiline(t, "a@host2 | oops\n", stderr.String())
}

// TestOutputLineBuffering is a function.
func TestOutputLineBuffering(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := NewOutput(planHosts("a@h1"), false, &stdout, &stderr)

	w := out.StdoutWriter("a@h1")
	w.Write([]byte("par"))
	w.Write([]byte("tial line\nsecond"))
	w.Write([]byte(" line\n"))
	w.Close()

	assertMultiline(t, "a@h1  | partial line\na@h1  | second line\n", stdout.String())
}

// TestOutputFlushOnClose is a function.
func TestOutputFlushOnClose(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := NewOutput(planHosts("a@h1"), false, &stdout, &stderr)

	w := out.StdoutWriter("a@h1")
	w.Write([]byte("no trailing newline"))
	w.Close()

	assertMultiline(t, "a@h1  | no trailing newline\n", stdout.String())

	// closing an empty writer emits nothing
	stdout.Reset()
	out.StdoutWriter("a@h1").Close()
	assert.Empty(t, stdout.String())
}

// TestOutputDisabledPrefix is a function.
func TestOutputDisabledPrefix(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := NewOutput(planHosts("a@h1"), true, &stdout, &stderr)

	w := out.StdoutWriter("a@h1")
	fmt.Fprintln(w, "bare")
	w.Close()

	assertMultiline(t, "bare\n", stdout.String())
}

// TestOutputLocalPrefix is a function.
func TestOutputLocalPrefix(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := NewOutput(planHosts("a@h1"), false, &stdout, &stderr)

	w := out.StdoutWriter(LocalName)
	fmt.Fprintln(w, "built")
	w.Close()

	assertMultiline(t, "local | built\n", stdout.String())
}

// TestOutputConcurrentWritesKeepLinesWhole is a function.
func TestOutputConcurrentWritesKeepLinesWhole(t *testing.T) {
	var stdout, stderr bytes.Buffer
	hosts := planHosts("a@h1", "a@h2", "a@h3")
	out := NewOutput(hosts, false, &stdout, &stderr)

	var wg sync.WaitGroup
	for _, host := range hosts {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			w := out.StdoutWriter(name)
			for i := 0; i < 50; i++ {
				w.Write([]byte("tick "))
				w.Write([]byte("tock\n"))
			}
			w.Close()
		}(host.Name)
	}
	wg.Wait()

	lines := bytes.Split(bytes.TrimSuffix(stdout.Bytes(), []byte("\n")), []byte("\n"))
	assert.Len(t, lines, 150)
	for _, line := range lines {
		assert.Regexp(t, `^a@h[123]  \| tick tock$`, string(line))
	}
}
