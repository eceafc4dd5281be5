package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heimdex/transitiond/internal/export"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var (
		outDir string
		title  string
		fps    float64
		track  int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write one track of the stored timeline as a CMX3600 EDL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := ctx.openTimeline(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeFn()

			if fps <= 0 {
				fps = ctx.cfg.FrameRate()
			}

			resp, err := export.Write(export.Sequence{
				Clips:       svc.ListClips(),
				Transitions: svc.ListTransitions(),
			}, export.ExportRequest{
				ProjectName: title,
				Format:      "edl",
				FrameRate:   fps,
				OutputDir:   outDir,
				Track:       track,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d clips, %d transitions)\n",
				resp.OutputPath, resp.ClipCount, resp.TransitionCount)
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "", "Output directory (must exist)")
	cmd.Flags().StringVar(&title, "title", "timeline", "EDL title and file name")
	cmd.Flags().Float64Var(&fps, "fps", 0, "Frame rate (defaults to the configured fps)")
	cmd.Flags().IntVar(&track, "track", 1, "Video track to export")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
