package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/BDNK1/sfnsim/cli/internal/config"
	"github.com/BDNK1/sfnsim/cli/internal/logging"
	"github.com/BDNK1/sfnsim/cli/internal/telemetry"
	"github.com/BDNK1/sfnsim/runtime"
)

// environment is what every command needs besides its own flags: the config
// file, a logger and the telemetry providers.
type environment struct {
	file      *config.File
	logger    *slog.Logger
	telemetry *telemetry.Providers
}

func setup(ctx context.Context, flags *rootFlags, stderr io.Writer) (*environment, error) {
	level, err := logging.ParseLevel(flags.logLevel)
	if err != nil {
		return nil, err
	}

	file, err := loadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}

	providers, err := telemetry.Setup(ctx, file.Telemetry, logging.New(stderr, level))
	if err != nil {
		return nil, err
	}

	return &environment{file: file, logger: providers.Logger, telemetry: providers}, nil
}

// loadConfig reads path, or ./sfnsim.yaml when path is empty and the file
// exists.
func loadConfig(path string) (*config.File, error) {
	if path == "" {
		if _, err := os.Stat(config.DefaultFileName); errors.Is(err, os.ErrNotExist) {
			return config.Empty(), nil
		}
		path = config.DefaultFileName
	}
	return config.Load(path)
}

// options merges the file's options with the environment's logger and
// telemetry providers.
func (env *environment) options() (*runtime.Options, error) {
	opts, err := env.file.RuntimeOptions()
	if err != nil {
		return nil, err
	}
	opts.Logger = env.logger
	opts.TracerProvider = env.telemetry.TracerProvider
	opts.MeterProvider = env.telemetry.MeterProvider
	return opts, nil
}

// newApp loads the configured machines plus extra, registers the configured
// resources and initializes them.
func (env *environment) newApp(ctx context.Context, extra map[string]*runtime.Definition, opts *runtime.Options) (*runtime.App, error) {
	defs, err := env.file.Definitions()
	if err != nil {
		return nil, err
	}
	for name, def := range extra {
		defs[name] = def
	}

	resources, err := env.file.Catalog()
	if err != nil {
		return nil, err
	}

	app, err := runtime.NewAppFromDefinitions(defs, resources, opts)
	if err != nil {
		return nil, err
	}
	if err := app.Initialize(ctx); err != nil {
		return nil, errors.Join(err, app.Shutdown(ctx))
	}
	return app, nil
}

func (env *environment) close(ctx context.Context, app *runtime.App) {
	if app != nil {
		if err := app.Shutdown(ctx); err != nil {
			env.logger.Error("Resource shutdown failed", "error", err)
		}
	}
	if err := env.telemetry.Shutdown(ctx); err != nil {
		env.logger.Error(fmt.Sprintf("Telemetry shutdown failed: %v", err))
	}
}
