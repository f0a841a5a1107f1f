// Package cli holds the plumbing shared by the command-line tools.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"contentmachine/internal/app"
	"contentmachine/internal/config"
	"contentmachine/internal/logging"
	"contentmachine/internal/publish"
)

// Bootstrap loads configuration and wires the application. CLIs log text to stderr
// unless LOG_FORMAT says otherwise.
func Bootstrap(ctx context.Context) (*app.App, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	format := cfg.LogFormat
	if format == "" {
		format = "text"
	}
	return app.New(ctx, cfg, logging.New(cfg.LogLevel, format))
}

// Execute runs cmd with a context cancelled on SIGINT or SIGTERM and exits 1 with a
// one-line diagnostic on failure.
func Execute(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", OneLine(err))
		os.Exit(1)
	}
}

// OneLine renders err as a single line, folding any line breaks in wrapped causes.
func OneLine(err error) string {
	lines := strings.FieldsFunc(err.Error(), func(r rune) bool { return r == '\n' || r == '\r' })
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, "; ")
}

// Quiet applies the settings every tool shares: no usage dump on runtime errors and
// no duplicate error line from cobra.
func Quiet(cmd *cobra.Command) *cobra.Command {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return cmd
}

// SplitList parses a comma separated flag value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// PrintRecords writes one line per publication attempt and returns how many failed.
func PrintRecords(w io.Writer, records []publish.Record) int {
	failed := 0
	for _, rec := range records {
		if rec.OK() {
			fmt.Fprintf(w, "  ok    %-10s %s\n", rec.Destination, rec.URL)
			continue
		}
		failed++
		fmt.Fprintf(w, "  fail  %-10s %s\n", rec.Destination, rec.Error)
	}
	return failed
}
