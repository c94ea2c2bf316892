package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newEventsCmd(c *cli) *cobra.Command {
	var (
		all   bool
		limit int
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the job outcome feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			evs, err := c.client().Events(cmd.Context(), all, limit)
			if err != nil {
				return err
			}
			printEvents(cmd.OutOrStdout(), evs)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include dismissed events")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of events")

	cmd.AddCommand(&cobra.Command{
		Use:   "dismiss <id>...",
		Short: "Hide events from the default listing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl := c.client()
			for _, raw := range args {
				id, err := strconv.ParseInt(raw, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid event id %q", raw)
				}
				if err := cl.DismissEvent(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Event %d dismissed\n", id)
			}
			return nil
		},
	})
	return cmd
}
