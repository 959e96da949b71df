package app

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AlexMikhalev/stackup/pkg/commands"
	"github.com/AlexMikhalev/stackup/pkg/config"
	"github.com/AlexMikhalev/stackup/pkg/i18n"
	"github.com/AlexMikhalev/stackup/pkg/log"
	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"
)

// App struct
type App struct {
	closers []io.Closer

	Config    *config.AppConfig
	Log       *logrus.Entry
	OSCommand *commands.OSCommand
	Engine    *commands.Engine
	Supfile   *config.Supfile
	Tr        *i18n.TranslationSet
}

// NewApp bootstrap a new application
func NewApp(appConfig *config.AppConfig) (*App, error) {
	app := &App{
		closers: []io.Closer{},
		Config:  appConfig,
	}
	app.Log = log.NewLogger(appConfig)
	app.Tr = i18n.NewTranslationSet(app.Log)
	app.OSCommand = commands.NewOSCommand(app.Log)
	app.Engine = commands.NewEngine(app.Log, app.OSCommand, app.Tr)

	// lock-order checking costs; the shared output sink only gets it when
	// debugging
	deadlock.Opts.Disable = !appConfig.Debug
	deadlock.Opts.DeadlockTimeout = 10 * time.Second

	var err error
	app.Supfile, err = config.NewSupfile(appConfig.SupfilePath)
	if err != nil {
		return app, err
	}

	return app, nil
}

// RunArgs is what the CLI front end resolved from flags and positional
// arguments.
type RunArgs struct {
	Network       string
	Names         []string
	Only          string
	Except        string
	EnvOverrides  map[string]string
	DisablePrefix bool
}

// Run builds the plan and drives it to completion. An interrupt or SIGTERM
// cancels everything in flight; the engine cleans up before returning.
func (app *App) Run(args RunArgs) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	plan, err := commands.BuildPlan(app.Supfile, commands.PlanArgs{
		Network:       args.Network,
		Names:         args.Names,
		Only:          args.Only,
		Except:        args.Except,
		EnvOverrides:  args.EnvOverrides,
		User:          app.Config.UserName,
		Time:          time.Now(),
		DisablePrefix: args.DisablePrefix,
		Tr:            app.Tr,
	})
	if err != nil {
		return err
	}

	app.Log.WithField("network", plan.NetworkName).WithField("hosts", len(plan.Hosts)).Info("executing plan")
	return app.Engine.Execute(ctx, plan)
}

// Close closes any resources
func (app *App) Close() error {
	for _, closer := range app.closers {
		err := closer.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

type errorMapping struct {
	originalError string
	newError      string
}

// KnownError takes an error and tells us whether it's an error that we know about where we can print a nicely formatted version of it rather than panicking with a stack trace
func (app *App) KnownError(err error) (string, bool) {
	errorMessage := err.Error()

	mappings := []errorMapping{
		{
			originalError: "SSH_AUTH_SOCK is not set",
			newError:      app.Tr.NoSSHAgent,
		},
		{
			originalError: "unable to authenticate",
			newError:      app.Tr.ConnectionFailed,
		},
	}

	for _, mapping := range mappings {
		if strings.Contains(errorMessage, mapping.originalError) {
			return mapping.newError, true
		}
	}

	return "", false
}
