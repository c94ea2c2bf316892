package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"mediafetch/internal/storage"
)

const timeLayout = "2006-01-02 15:04:05"

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func priorityText(p *int) string {
	if p == nil {
		return "-"
	}
	return strconv.Itoa(*p)
}

func localTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

// clip shortens s to n runes for table cells.
func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func printTasks(w io.Writer, tasks []storage.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tSTATE\tPRIORITY\tCATALOGUE\tDOWNLOAD\tSAVE\tSOURCES\tCREATED")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			t.ID, t.State, priorityText(t.Priority), t.CatalogueName,
			t.DownloadStrategy, t.SaveStrategy, len(t.Sources), localTime(t.CreatedAt))
	}
	_ = tw.Flush()
}

func printTask(w io.Writer, t storage.Task) {
	fmt.Fprintf(w, "Task:       %s\n", t.ID)
	fmt.Fprintf(w, "State:      %s\n", t.State)
	fmt.Fprintf(w, "Priority:   %s\n", priorityText(t.Priority))
	fmt.Fprintf(w, "Catalogue:  %s\n", t.CatalogueName)
	fmt.Fprintf(w, "Download:   %s\n", t.DownloadStrategy)
	fmt.Fprintf(w, "Save:       %s\n", t.SaveStrategy)
	fmt.Fprintf(w, "Created:    %s\n", localTime(t.CreatedAt))
	fmt.Fprintf(w, "Updated:    %s\n", localTime(t.UpdatedAt))
	if t.ErrorMessage != "" {
		fmt.Fprintf(w, "Error:      %s\n", t.ErrorMessage)
	}
	fmt.Fprintln(w, "Sources:")
	for _, s := range t.Sources {
		fmt.Fprintf(w, "  %s\n", s)
	}
}

func printWindows(w io.Writer, windows []storage.Window) {
	if len(windows) == 0 {
		fmt.Fprintln(w, "No windows; tasks run at any time.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tSTART\tEND\tCREATED")
	for i, win := range windows {
		id := win.ID
		if i == 0 && len(windows) > 1 {
			id += " (active)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id, win.Start, win.End, localTime(win.CreatedAt))
	}
	_ = tw.Flush()
}

func printEvents(w io.Writer, events []storage.Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tLEVEL\tKIND\tTIME\tMESSAGE")
	for _, e := range events {
		msg := clip(e.Message, 100)
		if e.DismissedAt != nil {
			msg += " (dismissed)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.ID, e.Level, e.Kind, localTime(e.CreatedAt), msg)
	}
	_ = tw.Flush()
}
