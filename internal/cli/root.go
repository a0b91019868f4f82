// Package cli wires the draw engine into the topicdraw command.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/raffleworks/topicdraw/internal/config"
	"github.com/raffleworks/topicdraw/internal/engine"
	"github.com/raffleworks/topicdraw/internal/forum"
	"github.com/raffleworks/topicdraw/internal/participant"
	"github.com/raffleworks/topicdraw/internal/scheduler"
	"github.com/raffleworks/topicdraw/internal/store"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
}

// NewRootCommand creates the topicdraw root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "topicdraw",
		Short: "Scheduled prize draws for discussion threads",
		Long: `topicdraw runs time-delayed, auditable prize draws attached to
discussion threads: a creator schedules a draw, participants accrue by
replying, and at the scheduled instant winners are selected and the draw
concludes in exactly one terminal state.`,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "topicdraw.yml", "path to the settings file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewDrawCommand(opts))

	return cmd
}

// Execute runs the CLI; the process exit code reflects the result.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func (o *RootOptions) newLogger() *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// buildEngine assembles a full engine from the settings file. The returned
// store must be closed by the caller.
func (o *RootOptions) buildEngine(logger *slog.Logger, sched engine.TriggerScheduler) (*engine.Engine, *store.Store, error) {
	settings, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(settings.DatabasePath)
	if err != nil {
		return nil, nil, err
	}

	client := forum.NewClient(settings.ForumBaseURL, settings.ForumAPIKey)
	client.RestrictCategories(settings.AllowedCategoryIDs)
	eng := engine.New(engine.Options{
		Store:          st,
		Deriver:        &participant.Deriver{Threads: client, Groups: client},
		Scheduler:      sched,
		Notifier:       client,
		Perms:          client,
		Logger:         logger,
		Enabled:        settings.Enabled,
		GlobalMinimum:  settings.GlobalMinParticipants,
		LockDelay:      settings.LockDelay(),
		ExcludedGroups: settings.ExcludedGroups,
	})
	return eng, st, nil
}

// noopScheduler satisfies engine.TriggerScheduler for one-shot commands
// that never wait for a future instant.
type noopScheduler struct{}

func (noopScheduler) ScheduleAt(scheduler.Trigger) bool { return true }
