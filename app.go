package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// App wires the command line to the demo and sandbox runners.
type App struct {
	cli      *cli.App
	stdin    io.Reader
	stdout   io.Writer
	logger   *zap.Logger
	config   *Config
	cleanups []func()
}

// NewApp provides an instance of App reading and printing on the given streams.
func NewApp(stdin io.Reader, stdout io.Writer) *App {
	app := &App{stdin: stdin, stdout: stdout, logger: zap.NewNop()}
	demo := &cli.Command{
		Name:   "demo",
		Usage:  "walk the books api: create, fetch, update, list and delete books",
		Action: app.runDemo,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "base-url", Usage: "books api base address"},
			&cli.BoolFlag{Name: "non-interactive", Usage: "do not wait for a key press"},
			&cli.BoolFlag{Name: "extended", Usage: "send description, author and creation date"},
		},
	}
	app.cli = &cli.App{
		Name:      "books-client",
		Usage:     "demonstration client of a books CRUD api",
		Version:   fmt.Sprintf("%s (commit %s, built %s)", GitTag, GitCommit, BuildTime),
		Writer:    stdout,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "yaml configuration file", EnvVars: []string{"BKC_CONFIG_FILE"}},
			&cli.StringFlag{Name: "env-file", Usage: "dotenv file loaded before reading the environment", EnvVars: []string{"BKC_ENV_FILE"}},
		},
		Before: app.setup,
		After:  app.teardown,
		Action: app.runDemo,
		Commands: []*cli.Command{
			demo,
			{
				Name:   "sandbox",
				Usage:  "serve a local books api backed by bolt, redis or postgres",
				Action: app.runSandbox,
			},
		},
	}
	return app
}

// Run parses the arguments and executes the selected command until it
// completes or the process receives an interrupt signal.
func (app *App) Run(args []string) error {
	nCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return app.cli.RunContext(nCtx, args)
}

// setup loads the configuration and the logging module.
func (app *App) setup(c *cli.Context) error {
	config, err := LoadAndInitConfigs(c.String("config"), c.String("env-file"), GitCommit, GitTag, BuildTime)
	if err != nil {
		return fmt.Errorf("failed to setup app configuration: %s", err)
	}
	app.config = config

	logFile, closer, err := OpenLogFile(config.LogFile)
	if err != nil {
		return err
	}
	// The demo prints its own lines on the terminal, so the console logs
	// only carry warnings and errors unless the sandbox is served.
	quiet := c.Args().First() != "sandbox"
	logger, flusher := SetupLogging(config, logFile, os.Stderr, quiet)
	app.logger = logger
	app.cleanups = append(app.cleanups, flusher, closer)
	return nil
}

// teardown calls all registered cleanups functions.
func (app *App) teardown(_ *cli.Context) error {
	for _, f := range app.cleanups {
		f()
	}
	app.cleanups = nil
	return nil
}

func (app *App) runDemo(c *cli.Context) error {
	if c.IsSet("base-url") {
		app.config.Client.BaseURL = c.String("base-url")
	}
	if c.Bool("non-interactive") {
		app.config.Demo.Interactive = false
	}
	if c.Bool("extended") {
		app.config.Demo.Fixtures.Extended = true
	}
	if err := app.config.ValidateDemo(); err != nil {
		return err
	}

	client, err := NewBooksClient(app.logger, app.config.Client.BaseURL,
		WithTimeout(app.config.Client.Timeout),
		WithHeaders(map[string][]string{"User-Agent": {app.config.Client.UserAgent}}),
	)
	if err != nil {
		return err
	}
	demo := NewDemo(
		app.logger,
		client,
		NewFixtures(&app.config.Demo.Fixtures, NewUTCClock(), nil),
		NewConsole(app.stdout, app.stdin, app.config.Demo.Interactive),
	)

	app.logger.Info("demo starting", zap.String("client.base_url", app.config.Client.BaseURL))
	// The demo reports its own failure on the console. Only an interrupt
	// makes the command fail.
	_ = demo.Run(c.Context)
	if err := c.Context.Err(); err != nil {
		return fmt.Errorf("demo interrupted: %w", err)
	}
	return nil
}

func (app *App) runSandbox(c *cli.Context) error {
	if err := app.config.ValidateSandbox(); err != nil {
		return err
	}
	sandbox, err := NewSandbox(c.Context, app.logger, app.config)
	if err != nil {
		return err
	}
	return sandbox.Run(c.Context)
}
