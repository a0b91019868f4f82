package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/raffleworks/topicdraw/internal/draw"
)

// NewDrawCommand creates the draw command: force immediate execution of a
// topic's draw. An administrative escape hatch for draws whose trigger was
// lost; the engine's idempotency rules apply as usual, so running it
// against a concluded draw changes nothing.
func NewDrawCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "draw <topic-id>",
		Short:         "Execute a topic's draw immediately",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			topicID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid topic id %q", args[0])
			}

			eng, st, err := rootOpts.buildEngine(rootOpts.newLogger(), noopScheduler{})
			if err != nil {
				return err
			}
			defer st.Close()

			outcome, err := eng.Execute(cmd.Context(), topicID)
			if err != nil {
				return err
			}

			if !outcome.Applied {
				fmt.Fprintf(cmd.OutOrStdout(), "draw already concluded: %s\n", outcome.Status)
				return nil
			}
			switch outcome.Status {
			case draw.StateFinished:
				fmt.Fprintf(cmd.OutOrStdout(), "draw finished with %d winner(s)\n", len(outcome.Winners))
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "draw cancelled: %s\n", outcome.Reason)
			}
			return nil
		},
	}
}
