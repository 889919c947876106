package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
)

// Reporter prints per-document progress lines and the final batch
// summary. The mutex keeps lines whole when workers finish concurrently.
type Reporter struct {
	mu    sync.Mutex
	out   io.Writer
	fancy bool // rounded table borders on interactive terminals
}

func newReporter(out io.Writer) *Reporter {
	fancy := false
	if f, ok := out.(*os.File); ok {
		fancy = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Reporter{out: out, fancy: fancy}
}

// DocumentLine reports one document's outcome as it completes.
func (r *Reporter) DocumentLine(res DocumentResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch res.Outcome {
	case OutcomeUploaded:
		if res.Cover != "" {
			fmt.Fprintf(r.out, "✓ uploaded %s (draft %s, cover %s)\n", res.Path, res.DraftID, res.Cover)
		} else {
			fmt.Fprintf(r.out, "✓ uploaded %s (draft %s)\n", res.Path, res.DraftID)
		}
	case OutcomeSkipped:
		fmt.Fprintf(r.out, "- skipped %s (%s)\n", res.Path, res.Reason)
	case OutcomeFailed:
		fmt.Fprintf(r.out, "✗ failed %s: %v\n", res.Path, res.Err)
	}
}

// Summary prints the aggregate counts for the invocation.
func (r *Reporter) Summary(batch *BatchResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	uploaded, skipped, failed := batch.Counts()

	tw := table.NewWriter()
	tw.SetOutputMirror(r.out)
	if r.fancy {
		tw.SetStyle(table.StyleRounded)
	}
	tw.AppendHeader(table.Row{"Outcome", "Count"})
	tw.AppendRow(table.Row{"uploaded", uploaded})
	tw.AppendRow(table.Row{"skipped", skipped})
	tw.AppendRow(table.Row{"failed", failed})
	if n := len(batch.ScanErrors); n > 0 {
		tw.AppendRow(table.Row{"scan errors", n})
	}
	tw.AppendFooter(table.Row{"total", len(batch.Results)})

	fmt.Fprintln(r.out)
	tw.Render()
}

// AccountTable prints the registry for the accounts subcommand.
func (r *Reporter) AccountTable(accounts []Account, defaultName string) {
	tw := table.NewWriter()
	tw.SetOutputMirror(r.out)
	if r.fancy {
		tw.SetStyle(table.StyleRounded)
	}
	tw.AppendHeader(table.Row{"Name", "App ID", "Default", "Description"})
	for _, a := range accounts {
		tw.AppendRow(table.Row{a.Name, a.AppID, strconv.FormatBool(a.Name == defaultName), a.Description})
	}
	tw.Render()
}

// newLogger builds the slog logger for the invocation; --verbose lowers
// the level to debug.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
