package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStrategiesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List the download and save strategies the server knows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.client().Strategies(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			tw := newTable(w)
			fmt.Fprintln(tw, "KIND\tNAME\tDESCRIPTION")
			for _, s := range res.Download {
				name := s.Name
				if name == res.DefaultDownload {
					name += " (default)"
				}
				fmt.Fprintf(tw, "download\t%s\t%s\n", name, s.Description)
			}
			for _, s := range res.Save {
				name := s.Name
				if name == res.DefaultSave {
					name += " (default)"
				}
				fmt.Fprintf(tw, "save\t%s\t%s\n", name, s.Description)
			}
			return tw.Flush()
		},
	}
}

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show worker and schedule state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.client().Engine(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			state := "idle"
			if res.JobActive {
				state = "running a task"
			}
			fmt.Fprintf(w, "Worker:     %s\n", state)
			fmt.Fprintf(w, "Queue:      %d/%d (in flight %d, dropped %d)\n",
				res.Engine.QueueLen, res.Engine.QueueCap, res.Engine.InFlight, res.Engine.Dropped)
			if s := res.Scheduler; s != nil {
				fmt.Fprintf(w, "Scheduler:  enabled=%t running=%t tz=%s\n", s.Enabled, s.Running, s.Timezone)
				for _, sch := range s.Schedules {
					fmt.Fprintf(w, "  %s  %s  next %s\n", sch.Name, sch.Spec, localTime(sch.Next))
				}
			}
			return nil
		},
	}
}
