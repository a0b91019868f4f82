package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raffleworks/topicdraw/internal/api"
	"github.com/raffleworks/topicdraw/internal/config"
	"github.com/raffleworks/topicdraw/internal/scheduler"
)

// NewServeCommand creates the serve command: the long-running process
// holding the trigger scheduler and the HTTP API.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the draw engine, scheduler, and HTTP API",
		Long: `serve opens the draw database, re-arms triggers for every draw still
running, and serves the HTTP API until interrupted. Re-arming may deliver
triggers whose instants already passed; the engine's status checks make
those harmless.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts)
		},
	}
}

func runServe(rootOpts *RootOptions) error {
	logger := rootOpts.newLogger()

	settings, err := config.Load(rootOpts.ConfigPath)
	if err != nil {
		return err
	}

	// The scheduler and engine reference each other (engine requests
	// triggers, scheduler delivers them back), so the timer is built
	// first against a handler that closes over the engine variable.
	var timer *scheduler.Timer
	eng, st, err := rootOpts.buildEngine(logger, schedulerFunc(func(t scheduler.Trigger) bool {
		return timer.ScheduleAt(t)
	}))
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	timer = scheduler.NewTimer(eng)

	if _, err := eng.RearmTriggers(ctx); err != nil {
		return fmt.Errorf("re-arm triggers: %w", err)
	}

	srv := &http.Server{
		Addr:    settings.ListenAddr,
		Handler: api.NewServer(eng, logger).Router(),
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("scheduler running")
		if err := timer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("http api listening", "addr", settings.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		stop()
		shutdown(srv)
		return err
	}

	shutdown(srv)
	return nil
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

// schedulerFunc adapts a function to engine.TriggerScheduler.
type schedulerFunc func(t scheduler.Trigger) bool

func (f schedulerFunc) ScheduleAt(t scheduler.Trigger) bool { return f(t) }
