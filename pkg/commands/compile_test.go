package commands

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/AlexMikhalev/stackup/pkg/config"
	"github.com/stretchr/testify/assert"
)

func testPlan() *Plan {
	return &Plan{
		NetworkName: "prod",
		Env: map[string]string{
			"SUP_NETWORK": "prod",
			"IMAGE":       "example/api",
		},
	}
}

// TestCompileRun is a function.
func TestCompileRun(t *testing.T) {
	inv, err := Compile(config.Command{Name: "ping", Run: "uptime"}, testPlan())
	assert.NoError(t, err)
	assert.False(t, inv.Local)
	assert.False(t, inv.Once)

	spec := inv.ProcSpecFor("alice@prod1.example.com")
	assert.EqualValues(t,
		"export IMAGE='example/api'; export SUP_NETWORK='prod'; export SUP_HOST='alice@prod1.example.com'; uptime",
		spec.Script)
	assert.Nil(t, spec.Stdin)
	assert.False(t, spec.TTY)
}

// TestCompileLocal is a function.
func TestCompileLocal(t *testing.T) {
	inv, err := Compile(config.Command{Name: "build", Local: "make build"}, testPlan())
	assert.NoError(t, err)
	assert.True(t, inv.Local)
	// a local command is implicitly once
	assert.True(t, inv.Once)

	spec := inv.ProcSpecFor("")
	assert.EqualValues(t,
		"export IMAGE='example/api'; export SUP_NETWORK='prod'; export SUP_HOST=''; make build",
		spec.Script)
}

// TestCompileScript is a function.
func TestCompileScript(t *testing.T) {
	scriptPath := filepath.Join(t.TempDir(), "setup.sh")
	assert.NoError(t, os.WriteFile(scriptPath, []byte("echo one\necho two\n"), 0o644))

	inv, err := Compile(config.Command{Name: "setup", Script: scriptPath}, testPlan())
	assert.NoError(t, err)

	specA := inv.ProcSpecFor("alice@prod1.example.com")
	assert.Contains(t, specA.Script, "/bin/sh -")
	data, err := io.ReadAll(specA.Stdin)
	assert.NoError(t, err)
	assert.EqualValues(t, "echo one\necho two\n", string(data))

	// every host gets its own reader over the script bytes
	specB := inv.ProcSpecFor("alice@prod2.example.com")
	data, err = io.ReadAll(specB.Stdin)
	assert.NoError(t, err)
	assert.EqualValues(t, "echo one\necho two\n", string(data))
}

// TestCompileScriptMissingFile is a function.
func TestCompileScriptMissingFile(t *testing.T) {
	_, err := Compile(config.Command{Name: "setup", Script: "/no/such/file.sh"}, testPlan())
	if assert.Error(t, err) {
		assert.True(t, HasErrorCode(err, ExitConfig))
	}
}

// TestCompileUpload is a function.
func TestCompileUpload(t *testing.T) {
	uploads := []config.Upload{{Src: "./dist", Dst: "/srv/app"}}
	inv, err := Compile(config.Command{Name: "deploy", Upload: uploads}, testPlan())
	assert.NoError(t, err)
	assert.EqualValues(t, uploads, inv.Uploads)
}

// TestCompileStdinRequestsTTY is a function.
func TestCompileStdinRequestsTTY(t *testing.T) {
	inv, err := Compile(config.Command{Name: "attach", Run: "cat", Stdin: true}, testPlan())
	assert.NoError(t, err)
	assert.True(t, inv.TTY)
	assert.True(t, inv.ProcSpecFor("alice@prod1.example.com").TTY)
}

// TestCompileEnvLayering is a function.
func TestCompileEnvLayering(t *testing.T) {
	plan := &Plan{
		Env:       map[string]string{"STAGE": "production", "IMAGE": "example/api"},
		Overrides: map[string]string{"IMAGE": "example/api:canary"},
		Hosts: []Host{
			{Name: "alice@prod1.example.com", Env: map[string]string{"STAGE": "primary", "ROLE": "db"}},
			{Name: "alice@prod2.example.com"},
		},
	}

	inv, err := Compile(config.Command{Name: "ping", Run: "uptime"}, plan)
	assert.NoError(t, err)

	// the host layer beats the network layer, the CLI layer beats both
	assert.EqualValues(t,
		"export IMAGE='example/api:canary'; export ROLE='db'; export STAGE='primary'; export SUP_HOST='alice@prod1.example.com'; uptime",
		inv.ProcSpecFor("alice@prod1.example.com").Script)

	// a host without its own layer sees the broader ones untouched
	assert.EqualValues(t,
		"export IMAGE='example/api:canary'; export STAGE='production'; export SUP_HOST='alice@prod2.example.com'; uptime",
		inv.ProcSpecFor("alice@prod2.example.com").Script)

	// plan environments are never mutated during execution
	assert.EqualValues(t, "example/api", plan.Env["IMAGE"])
	assert.EqualValues(t, map[string]string{"STAGE": "primary", "ROLE": "db"}, plan.Hosts[0].Env)
}

// TestExportPrefixQuoting is a function.
func TestExportPrefixQuoting(t *testing.T) {
	prefix := exportPrefix(map[string]string{"MESSAGE": "it's $HOME"}, "")
	assert.EqualValues(t, `export MESSAGE='it'\''s $HOME'; export SUP_HOST=''; `, prefix)
}
