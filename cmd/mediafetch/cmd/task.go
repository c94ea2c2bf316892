package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mediafetch/internal/storage"
)

func newTaskCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "task",
		Aliases: []string{"tasks"},
		Short:   "Create, inspect and reorder fetch tasks",
	}
	cmd.AddCommand(
		newTaskAddCmd(c),
		newTaskListCmd(c),
		newTaskGetCmd(c),
		newTaskEditCmd(c),
		newTaskRemoveCmd(c),
		newTaskRequeueCmd(c),
	)
	return cmd
}

func newTaskAddCmd(c *cli) *cobra.Command {
	var (
		catalogue, download, save, file string
		priority                        int
	)
	cmd := &cobra.Command{
		Use:   "add [source...]",
		Short: "Queue a new task",
		Long: `Queue a new task. Sources are given as arguments, read from --file
(one per line, "-" for stdin), or both. The task goes to the end of the pending
queue unless --priority places it; 1 is the lowest priority.`,
		Example: `  mediafetch task add https://example.com/a https://example.com/b --catalogue talks
  mediafetch task add --file urls.txt --catalogue music --download audio_highest --save s3_save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sources := append([]string(nil), args...)
			if file != "" {
				more, err := readSources(cmd.InOrStdin(), file)
				if err != nil {
					return err
				}
				sources = append(sources, more...)
			}
			if len(sources) == 0 {
				return errors.New("at least one source is required")
			}
			in := taskPayload{
				Sources:          sources,
				DownloadStrategy: download,
				SaveStrategy:     save,
				CatalogueName:    catalogue,
			}
			if cmd.Flags().Changed("priority") {
				in.Priority = &priority
			}
			t, err := c.client().CreateTask(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %s queued at priority %s\n", t.ID, priorityText(t.Priority))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&catalogue, "catalogue", "", "catalogue (destination folder) name")
	f.StringVar(&download, "download", "", "download strategy (default from server)")
	f.StringVar(&save, "save", "", "save strategy (default from server)")
	f.StringVar(&file, "file", "", `read sources from file, one per line ("-" for stdin)`)
	f.IntVar(&priority, "priority", 0, "queue position, higher runs first")
	_ = cmd.MarkFlagRequired("catalogue")
	return cmd
}

func newTaskListCmd(c *cli) *cobra.Command {
	var (
		state string
		limit int
	)
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List tasks, pending first in run order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tasks, err := c.client().ListTasks(cmd.Context(), strings.ToUpper(state), limit)
			if err != nil {
				return err
			}
			printTasks(cmd.OutOrStdout(), tasks)
			return nil
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "filter by state (pending, in_progress, completed, failed)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of tasks")
	return cmd
}

func newTaskGetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := c.client().GetTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printTask(cmd.OutOrStdout(), t)
			return nil
		},
	}
}

func newTaskEditCmd(c *cli) *cobra.Command {
	var (
		catalogue, download, save, file string
		sources                         []string
		priority                        int
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a task; only the given flags are updated",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			var in taskEdit
			if f.Changed("catalogue") {
				in.CatalogueName = &catalogue
			}
			if f.Changed("download") {
				in.DownloadStrategy = &download
			}
			if f.Changed("save") {
				in.SaveStrategy = &save
			}
			if f.Changed("priority") {
				in.Priority = &priority
			}
			if f.Changed("source") || f.Changed("file") {
				all := append([]string(nil), sources...)
				if file != "" {
					more, err := readSources(cmd.InOrStdin(), file)
					if err != nil {
						return err
					}
					all = append(all, more...)
				}
				in.Sources = &all
			}
			if in == (taskEdit{}) {
				return errors.New("nothing to change")
			}
			t, err := c.client().UpdateTask(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			printTask(cmd.OutOrStdout(), t)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&catalogue, "catalogue", "", "new catalogue name")
	f.StringVar(&download, "download", "", "new download strategy")
	f.StringVar(&save, "save", "", "new save strategy")
	f.StringArrayVar(&sources, "source", nil, "replace sources (repeatable)")
	f.StringVar(&file, "file", "", `replace sources from file ("-" for stdin)`)
	f.IntVar(&priority, "priority", 0, "move a pending task to this priority")
	return cmd
}

func newTaskRemoveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"delete"},
		Short:   "Delete tasks",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl := c.client()
			var errs []error
			for _, id := range args {
				if err := cl.DeleteTask(cmd.Context(), id); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", id, err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s deleted\n", id)
			}
			return errors.Join(errs...)
		},
	}
}

func newTaskRequeueCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <id>",
		Short: "Return a finished or stuck task to the end of the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := c.client().RequeueTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %s requeued at priority %s\n", t.ID, priorityText(t.Priority))
			return nil
		},
	}
}

// readSources reads one source per line from path, or from stdin for "-".
func readSources(stdin io.Reader, path string) ([]string, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var b strings.Builder
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		b.WriteString(sc.Text())
		b.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	return storage.ParseSources(b.String()), nil
}
