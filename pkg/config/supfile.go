// Package config handles parsing of the Supfile: the YAML document that
// declares networks (groups of hosts), commands (shell snippets with an
// execution mode) and targets (ordered sequences of commands).
package config

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/go-errors/errors"
	yaml "github.com/jesseduffield/yaml"
	"github.com/spkg/bom"
)

// Supfile represents the configuration YAML file.
type Supfile struct {
	Version  string              `yaml:"version"`
	Env      map[string]string   `yaml:"env,omitempty"`
	Networks map[string]Network  `yaml:"networks"`
	Commands map[string]Command  `yaml:"commands"`
	Targets  map[string][]string `yaml:"targets,omitempty"`
}

// Network is a group of hosts with extra custom env vars. Hosts can be given
// literally, produced by running the Inventory expression, or both. HostEnv
// carries per-host variables, keyed by the host string as written in Hosts
// (or as printed by the inventory expression).
type Network struct {
	Env       map[string]string            `yaml:"env,omitempty"`
	Inventory string                       `yaml:"inventory,omitempty"`
	Hosts     []string                     `yaml:"hosts,omitempty"`
	HostEnv   map[string]map[string]string `yaml:"host_env,omitempty"`
}

// Command represents command(s) to be run remotely (or locally).
type Command struct {
	Name   string   `yaml:"-"`                // Command name (the key in the commands mapping).
	Desc   string   `yaml:"desc,omitempty"`   // Command description.
	Local  string   `yaml:"local,omitempty"`  // Command(s) to be run locally, on one host only.
	Run    string   `yaml:"run,omitempty"`    // Command(s) to be run remotely.
	Script string   `yaml:"script,omitempty"` // Local file whose contents feed the remote shell's stdin.
	Upload []Upload `yaml:"upload,omitempty"` // See the Upload struct.
	Stdin  bool     `yaml:"stdin,omitempty"`  // Attach the invoker's stdin to the remote command (needs a PTY).
	Once   bool     `yaml:"once,omitempty"`   // Run on exactly one host of the selected set.
	Serial int      `yaml:"serial,omitempty"` // Max number of hosts processing the command at a time.
}

// Upload represents a file copy operation from the local Src path to the Dst
// directory of every selected host. Exc is passed to tar as an exclude
// pattern.
type Upload struct {
	Src string `yaml:"src"`
	Dst string `yaml:"dst"`
	Exc string `yaml:"exclude,omitempty"`
}

// NewSupfile reads and parses a configuration file.
func NewSupfile(file string) (*Supfile, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return ParseSupfile(data)
}

// ParseSupfile parses configuration bytes and returns a Supfile or an error.
// A UTF-8 BOM at the start of the document is tolerated; some editors on
// windows insist on writing one.
func ParseSupfile(data []byte) (*Supfile, error) {
	var conf Supfile
	if err := yaml.Unmarshal(bom.Clean(data), &conf); err != nil {
		return nil, errors.Wrap(err, 0)
	}

	switch conf.Version {
	case "":
		conf.Version = "0.5"
	case "0.4", "0.5":
	default:
		return nil, errors.Errorf("unsupported Supfile version %q", conf.Version)
	}

	// commands know their own name so that everything downstream can report
	// on them without carrying the mapping key around
	for name, cmd := range conf.Commands {
		cmd.Name = name
		conf.Commands[name] = cmd
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}

	return &conf, nil
}

// CommandNames returns the defined command names, sorted.
func (s *Supfile) CommandNames() []string {
	names := make([]string, 0, len(s.Commands))
	for name := range s.Commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TargetNames returns the defined target names, sorted.
func (s *Supfile) TargetNames() []string {
	names := make([]string, 0, len(s.Targets))
	for name := range s.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NetworkNames returns the defined network names, sorted.
func (s *Supfile) NetworkNames() []string {
	names := make([]string, 0, len(s.Networks))
	for name := range s.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveInventory runs the network's inventory expression, if any, under the
// local shell and returns the host strings it printed, one per line. Empty
// lines and #-comments are skipped. The merged environment is exported to the
// expression so that $VAR references expand after merging.
func (n Network) ResolveInventory(env map[string]string) ([]string, error) {
	if n.Inventory == "" {
		return nil, nil
	}

	cmd := exec.Command("/bin/sh", "-c", n.Inventory)
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Stderr = os.Stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	return parseInventoryOutput(bytes.NewReader(output))
}

func parseInventoryOutput(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	var hosts []string
	for _, line := range strings.Split(string(data), "\n") {
		host := strings.TrimSpace(line)
		if host == "" || strings.HasPrefix(host, "#") {
			continue
		}
		hosts = append(hosts, host)
	}
	return hosts, nil
}
