package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/raffleworks/topicdraw/internal/draw"
)

// NewShowCommand creates the show command: print a topic's draw snapshot.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <topic-id>",
		Short:         "Print the draw for a topic as JSON",
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

			d, err := eng.Snapshot(cmd.Context(), topicID)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(snapshot(d), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

// snapshot is the CLI's read model of a draw.
type snapshotView struct {
	TopicID         int64         `json:"topic_id"`
	InitiatorID     int64         `json:"initiator_id"`
	Title           string        `json:"title"`
	Prize           string        `json:"prize_description"`
	DrawAt          string        `json:"draw_time"`
	Policy          string        `json:"policy"`
	WinnerCount     int           `json:"winner_count,omitempty"`
	Positions       []int         `json:"positions,omitempty"`
	MinParticipants int           `json:"min_participants"`
	Backup          string        `json:"backup_strategy"`
	Status          string        `json:"status"`
	Winners         []draw.Winner `json:"winners"`
	CancelReason    string        `json:"cancel_reason,omitempty"`
	LockedAt        string        `json:"locked_at,omitempty"`
	CreatedAt       string        `json:"created_at"`
	UpdatedAt       string        `json:"updated_at"`
}

func snapshot(d *draw.Draw) snapshotView {
	v := snapshotView{
		TopicID:         d.TopicID,
		InitiatorID:     d.InitiatorID,
		Title:           d.Config.Title,
		Prize:           d.Config.PrizeDescription,
		DrawAt:          d.Config.DrawAt.Format(time.RFC3339),
		Policy:          string(d.Config.Policy.Kind),
		WinnerCount:     d.Config.Policy.Count,
		Positions:       d.Config.Policy.Positions,
		MinParticipants: d.Config.MinParticipants,
		Backup:          string(d.Config.Backup),
		Status:          string(d.Status),
		Winners:         d.Winners,
		CancelReason:    d.CancelReason,
		CreatedAt:       d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       d.UpdatedAt.Format(time.RFC3339),
	}
	if v.Winners == nil {
		v.Winners = []draw.Winner{}
	}
	if d.LockedAt != nil {
		v.LockedAt = d.LockedAt.Format(time.RFC3339)
	}
	return v
}
