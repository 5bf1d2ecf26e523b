// Command unify runs the normalization pipeline over local spreadsheet files,
// prints the header mappings and a summary, and writes the CSV exports.
//
// Usage:
//
//	unify [-autofix] [-out dir] files...
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/JonMunkholm/salesunifier/internal/application"
	"github.com/JonMunkholm/salesunifier/internal/config"
	"github.com/JonMunkholm/salesunifier/internal/core"
	"github.com/JonMunkholm/salesunifier/internal/logging"
	"github.com/JonMunkholm/salesunifier/internal/report"
	"github.com/joho/godotenv"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("unify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	autofix := fs.Bool("autofix", false, "repair every exception through the assistant after processing")
	outDir := fs.String("out", ".", "directory for the CSV exports")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: unify [-autofix] [-out dir] files...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	// .env is optional; real environment variables win for the CLI
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "configuration: %v\n", err)
		return 1
	}
	slog.SetDefault(logging.New(stderr, cfg.Logging.Level, cfg.Logging.Format))

	files, err := readInputs(fs.Args())
	if err != nil {
		fmt.Fprintln(stderr, core.FormatUserError(err))
		return 1
	}

	app, err := application.Build(ctx, cfg, application.Options{})
	if err != nil {
		fmt.Fprintf(stderr, "startup: %v\n", err)
		return 1
	}
	defer app.Close()

	result, err := app.Pipeline.ProcessFiles(ctx, files)
	if err != nil {
		fmt.Fprintln(stderr, core.FormatUserError(err))
		return 1
	}
	fmt.Fprint(stdout, report.Mappings(result))
	fmt.Fprint(stdout, report.Summary(result))

	if *autofix {
		bulk, err := app.Pipeline.AutoFixAll(ctx)
		if err != nil {
			fmt.Fprintln(stderr, core.FormatUserError(err))
			return 1
		}
		fmt.Fprintln(stdout)
		fmt.Fprint(stdout, report.BulkFix(bulk))
	}

	fmt.Fprintln(stdout)
	fmt.Fprint(stdout, report.Exceptions(app.Pipeline.Ledger().Exceptions()))

	written, err := writeExports(stdout, *outDir, app.Pipeline.Ledger(), time.Now())
	for _, path := range written {
		fmt.Fprintf(stdout, "wrote %s\n", path)
	}
	if err != nil {
		fmt.Fprintf(stderr, "export: %v\n", err)
		return 1
	}

	if result.FailedFiles() > 0 {
		return 1
	}
	return 0
}

// readInputs loads every named file. Unlike the HTTP upload there is no
// size limit here.
func readInputs(paths []string) ([]core.FileInput, error) {
	files := make([]core.FileInput, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, core.UnreadableFile(p, err)
		}
		files = append(files, core.FileInput{Name: filepath.Base(p), Data: data})
	}
	return files, nil
}

// writeExports writes the consolidated and fix-history CSVs into dir.
// An empty table is reported on out and skipped rather than written as an
// empty file.
func writeExports(out io.Writer, dir string, l *core.Ledger, now time.Time) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	exports := []struct {
		base string
		rows []core.ExportRow
	}{
		{core.ExportConsolidated, core.ConsolidatedRows(l)},
		{core.ExportFixHistory, core.FixHistoryRows(l)},
	}

	var written []string
	for _, e := range exports {
		body, err := core.ToCSV(e.rows)
		if errors.Is(err, core.ErrNoData) {
			fmt.Fprintf(out, "no data to export for %s\n", e.base)
			continue
		}
		if err != nil {
			return written, fmt.Errorf("%s: %w", e.base, err)
		}

		path := filepath.Join(dir, core.ExportFileName(e.base, now))
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
