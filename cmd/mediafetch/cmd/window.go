package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"mediafetch/internal/transport/httpapi"
	"mediafetch/internal/window"
)

func newWindowCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "window",
		Aliases: []string{"windows"},
		Short:   "Manage the daily execution window",
		Long: `Manage the daily execution window. Tasks start only while the local time is
inside the window; a window whose end is before its start wraps past midnight.
With several windows defined the oldest one applies.`,
	}
	cmd.AddCommand(&cobra.Command{
		Use:     "add <start> <end>",
		Short:   "Define a window (HH:MM or HH:MM:SS)",
		Example: "  mediafetch window add 23:00 06:30",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := window.Parse(args[0])
			if err != nil {
				return err
			}
			end, err := window.Parse(args[1])
			if err != nil {
				return err
			}
			w, err := c.client().CreateWindow(cmd.Context(), httpapi.CreateWindowRequest{Start: start, End: end})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Window %s created: %s - %s\n", w.ID, w.Start, w.End)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List windows",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := c.client().ListWindows(cmd.Context())
			if err != nil {
				return err
			}
			printWindows(cmd.OutOrStdout(), ws)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a window",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.client().DeleteWindow(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Window %s deleted\n", args[0])
			return nil
		},
	})
	return cmd
}
