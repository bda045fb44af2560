package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/BDNK1/sfnsim/cli/internal/config"
	"github.com/BDNK1/sfnsim/cli/internal/metrics"
	"github.com/BDNK1/sfnsim/runtime"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(root *rootFlags) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured state machines over HTTP",
		Long: `Serve starts an HTTP server executing the state machines listed in the
config file.

  GET  /state-machines
  POST /state-machines/:name/executions
  GET  /metrics
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), root, port, cmd)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8080", "Port to listen on")
	return cmd
}

func serve(ctx context.Context, root *rootFlags, port string, cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := setup(ctx, root, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	var app *runtime.App
	defer func() { env.close(context.WithoutCancel(ctx), app) }()

	opts, err := env.options()
	if err != nil {
		return err
	}
	m := metrics.New()
	opts.Hooks = m.Hooks(env.logger)

	app, err = env.newApp(ctx, nil, opts)
	if err != nil {
		return err
	}
	if len(app.Machines) == 0 {
		return fmt.Errorf("no state machines configured: add state_machines to %s", configName(root))
	}

	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	runtime.NewHttpHandler(app.Machines, env.logger, g)
	g.GET("/metrics", gin.WrapH(m.Handler()))

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: g,
	}

	serverErrors := make(chan error, 1)
	go func() {
		env.logger.Info(fmt.Sprintf("Serving %d state machines on %s", len(app.Machines), srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		env.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			env.logger.Error(fmt.Sprintf("Graceful shutdown did not complete in %v", shutdownTimeout), "error", err)
			return srv.Close()
		}
		return nil
	}
}

func configName(root *rootFlags) string {
	if root.configPath != "" {
		return root.configPath
	}
	return config.DefaultFileName
}
