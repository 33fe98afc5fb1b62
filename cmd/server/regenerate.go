package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jimdaga/friend-frenzy/internal/config"
	"github.com/spf13/cobra"
)

func newRegenerateCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "regenerate <poll-id>",
		Short: "Regenerate the AI insights of a closed poll and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(config.ModeInline)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.wireInsights(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			resp, err := a.orch.Insights(ctx, args[0], true)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Minute, "Give up after this long")
	return cmd
}
