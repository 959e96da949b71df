package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleSupfile = `---
version: "0.5"

env:
  IMAGE: example/api

networks:
  dev:
    hosts:
      - alice@dev1.example.com
  prod:
    env:
      ENVIRONMENT: production
    hosts:
      - alice@prod1.example.com:2222
      - alice@prod2.example.com
    host_env:
      alice@prod1.example.com:2222:
        ROLE: primary

commands:
  ping:
    desc: Print uptime on all hosts
    run: uptime
  build:
    desc: Build the image locally
    local: make build
  deploy:
    desc: Upload the release
    upload:
      - src: ./dist
        dst: /srv/app
  restart:
    desc: Restart the service, two hosts at a time
    run: systemctl restart app
    serial: 2

targets:
  release:
    - build
    - deploy
    - restart
`

// TestParseSupfile is a function.
func TestParseSupfile(t *testing.T) {
	conf, err := ParseSupfile([]byte(sampleSupfile))
	assert.NoError(t, err)
	assert.EqualValues(t, "0.5", conf.Version)
	assert.EqualValues(t, "example/api", conf.Env["IMAGE"])
	assert.Len(t, conf.Networks["prod"].Hosts, 2)
	assert.EqualValues(t, "production", conf.Networks["prod"].Env["ENVIRONMENT"])
	assert.EqualValues(t, "primary", conf.Networks["prod"].HostEnv["alice@prod1.example.com:2222"]["ROLE"])
	assert.EqualValues(t, "ping", conf.Commands["ping"].Name)
	assert.EqualValues(t, 2, conf.Commands["restart"].Serial)
	assert.EqualValues(t, []string{"build", "deploy", "restart"}, conf.Targets["release"])
}

// TestParseSupfileWithBOM is a function.
func TestParseSupfileWithBOM(t *testing.T) {
	data := append([]byte{0xef, 0xbb, 0xbf}, []byte(sampleSupfile)...)
	conf, err := ParseSupfile(data)
	assert.NoError(t, err)
	assert.EqualValues(t, "0.5", conf.Version)
}

// TestParseSupfileVersions is a function.
func TestParseSupfileVersions(t *testing.T) {
	type scenario struct {
		version  string
		expected string
		errors   bool
	}

	scenarios := []scenario{
		{"", "0.5", false},
		{`version: "0.4"`, "0.4", false},
		{`version: "0.5"`, "0.5", false},
		{`version: "0.2"`, "", true},
		{`version: "9000"`, "", true},
	}

	for _, s := range scenarios {
		doc := s.version + "\ncommands:\n  ping:\n    run: uptime\n"
		conf, err := ParseSupfile([]byte(doc))
		if s.errors {
			assert.Error(t, err)
			continue
		}
		assert.NoError(t, err)
		assert.EqualValues(t, s.expected, conf.Version)
	}
}

// TestCommandValidation is a function.
func TestCommandValidation(t *testing.T) {
	type scenario struct {
		command  Command
		expected string
	}

	scenarios := []scenario{
		{
			Command{},
			"missing one of run, local, script or upload",
		},
		{
			Command{Run: "uptime", Local: "make build"},
			"mutually exclusive",
		},
		{
			Command{Run: "uptime", Serial: -1},
			"serial must be a positive number",
		},
		{
			Command{Run: "uptime", Serial: 2, Once: true},
			"once and serial are mutually exclusive",
		},
		{
			Command{Script: "./setup.sh", Stdin: true},
			"stdin can only be attached to a run command",
		},
	}

	for _, s := range scenarios {
		err := s.command.validate()
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), s.expected)
		}
	}

	assert.NoError(t, Command{Run: "uptime", Serial: 2}.validate())
	assert.NoError(t, Command{Local: "make build"}.validate())
}

// TestTargetValidation is a function.
func TestTargetValidation(t *testing.T) {
	doc := sampleSupfile + "  broken:\n    - no-such-command\n"
	_, err := ParseSupfile([]byte(doc))
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "unknown command")
	}
}

// TestParseInventoryOutput is a function.
func TestParseInventoryOutput(t *testing.T) {
	output := "alice@one.example.com\n\n# a comment\nalice@two.example.com\n"
	hosts, err := parseInventoryOutput(strings.NewReader(output))
	assert.NoError(t, err)
	assert.EqualValues(t, []string{"alice@one.example.com", "alice@two.example.com"}, hosts)
}

// TestResolveInventory is a function.
func TestResolveInventory(t *testing.T) {
	network := Network{Inventory: `printf 'alice@%s.example.com\n' "$REGION"`}
	hosts, err := network.ResolveInventory(map[string]string{"REGION": "eu1"})
	assert.NoError(t, err)
	assert.EqualValues(t, []string{"alice@eu1.example.com"}, hosts)

	empty := Network{}
	hosts, err = empty.ResolveInventory(nil)
	assert.NoError(t, err)
	assert.Nil(t, hosts)
}
