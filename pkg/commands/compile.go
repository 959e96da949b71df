package commands

import (
	"bytes"
	"os"
	"sort"
	"strings"

	"github.com/AlexMikhalev/stackup/pkg/config"
)

// Invocation is a compiled command: everything the dispatcher needs to run
// one command specification across the plan's hosts. Variables are never
// substituted into the script text here; they are exported in a shell
// preamble and the remote shell expands them, which keeps whatever quoting
// the user wrote intact.
type Invocation struct {
	Command config.Command
	Local   bool
	Once    bool
	Serial  int
	TTY     bool
	Uploads []config.Upload

	script    string
	stdinData []byte
	env       map[string]string
	overrides map[string]string
	hostEnv   map[string]map[string]string
}

// Compile translates a command specification into an invocation for the
// given plan. For script commands the local file is read here, once.
func Compile(cmd config.Command, plan *Plan) (*Invocation, error) {
	inv := &Invocation{
		Command:   cmd,
		Once:      cmd.Once,
		Serial:    cmd.Serial,
		TTY:       cmd.Stdin,
		env:       plan.Env,
		overrides: plan.Overrides,
		hostEnv:   map[string]map[string]string{},
	}
	for _, host := range plan.Hosts {
		if len(host.Env) > 0 {
			inv.hostEnv[host.Name] = host.Env
		}
	}

	switch {
	case cmd.Local != "":
		// a local command runs on the invoker, exactly once
		inv.Local = true
		inv.Once = true
		inv.script = cmd.Local
	case cmd.Run != "":
		inv.script = cmd.Run
	case cmd.Script != "":
		data, err := os.ReadFile(cmd.Script)
		if err != nil {
			return nil, configErrorf("command %q: reading script: %s", cmd.Name, err.Error())
		}
		inv.stdinData = data
	case len(cmd.Upload) > 0:
		inv.Uploads = cmd.Upload
	default:
		return nil, configErrorf("command %q has nothing to run", cmd.Name)
	}

	return inv, nil
}

// ProcSpecFor produces the concrete process spec for one host. hostName is
// empty for the local venue, which is also what SUP_HOST ends up as there.
func (inv *Invocation) ProcSpecFor(hostName string) ProcSpec {
	prefix := exportPrefix(inv.envFor(hostName), hostName)

	if inv.stdinData != nil {
		// script commands feed the file to a bare shell's stdin; each host
		// gets its own reader over the bytes
		return ProcSpec{
			Script: prefix + "/bin/sh -",
			Stdin:  bytes.NewReader(inv.stdinData),
		}
	}

	return ProcSpec{
		Script: prefix + inv.script,
		TTY:    inv.TTY,
	}
}

// envFor folds the environment layers together for one host: the host's own
// variables override the global and network layers, and the CLI overrides
// win over everything.
func (inv *Invocation) envFor(hostName string) map[string]string {
	env := make(map[string]string, len(inv.env))
	for k, v := range inv.env {
		env[k] = v
	}
	for k, v := range inv.hostEnv[hostName] {
		env[k] = v
	}
	for k, v := range inv.overrides {
		env[k] = v
	}
	return env
}

// exportPrefix renders the environment as a shell `export` preamble. Keys are
// sorted so that the preamble is stable between hosts and runs.
func exportPrefix(env map[string]string, hostName string) string {
	keys := make([]string, 0, len(env)+1)
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString("export ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(ShellQuote(env[k]))
		b.WriteString("; ")
	}
	b.WriteString("export SUP_HOST=")
	b.WriteString(ShellQuote(hostName))
	b.WriteString("; ")
	return b.String()
}
