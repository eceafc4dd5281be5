package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/heimdex/transitiond/internal/timeline"
)

type transitionJSON struct {
	ID           string            `json:"id"`
	Kind         string            `json:"kind"`
	Parameters   map[string]string `json:"parameters,omitempty"`
	SingleClip   bool              `json:"single_clip"`
	RefClipID    string            `json:"ref_clip_id"`
	SecondClipID string            `json:"second_clip_id,omitempty"`
	Start        float64           `json:"start"`
	End          float64           `json:"end"`
	StartTrack   int               `json:"start_track"`
	EndTrack     int               `json:"end_track"`
	Invert       bool              `json:"invert"`
}

func newTransitionsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "transitions",
		Short: "List stored transitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := ctx.openTimeline(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeFn()

			views := svc.ListTransitions()
			if asJSON {
				out := make([]transitionJSON, len(views))
				for i, v := range views {
					out[i] = toTransitionJSON(v)
				}
				return writeJSON(cmd, out)
			}

			if len(views) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No transitions")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTransitions(views))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func toTransitionJSON(v timeline.TransitionView) transitionJSON {
	return transitionJSON{
		ID:           v.ID,
		Kind:         v.Kind,
		Parameters:   v.Parameters,
		SingleClip:   v.SingleClip,
		RefClipID:    v.RefClipID,
		SecondClipID: v.SecondClipID,
		Start:        v.Start.Seconds(),
		End:          v.End.Seconds(),
		StartTrack:   v.StartTrack,
		EndTrack:     v.EndTrack,
		Invert:       v.Invert,
	}
}

func renderTransitions(views []timeline.TransitionView) string {
	headers := []string{"ID", "Kind", "Mode", "Tracks", "Start", "End", "Duration", "Direction"}
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		mode := "automatic"
		if v.SingleClip {
			mode = "single"
		}
		direction := "normal"
		if v.Invert {
			direction = "reverse"
		}
		rows = append(rows, []string{
			shortID(v.ID),
			v.Kind,
			mode,
			strconv.Itoa(v.StartTrack) + " > " + strconv.Itoa(v.EndTrack),
			v.Start.String(),
			v.End.String(),
			v.Duration().String(),
			direction,
		})
	}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}
	return renderTable(headers, rows, aligns)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
