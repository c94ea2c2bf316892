package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogsCmd(c *cli) *cobra.Command {
	var lines int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the tail of the server log file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := c.client().Logs(cmd.Context(), lines)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(out) == 0 {
				fmt.Fprintln(w, "No log lines (is logging.file.enabled set?)")
				return nil
			}
			for _, l := range out {
				fmt.Fprintln(w, l)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 100, "number of lines")
	return cmd
}
