package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/VladMinzatu/simtrace/internal/exporter"
	"github.com/VladMinzatu/simtrace/internal/pprof"
	"github.com/VladMinzatu/simtrace/internal/symbolizer"
	"github.com/VladMinzatu/simtrace/internal/trace"
)

const (
	exitFailure = 1
	exitUsage   = 2
)

type cli struct {
	Trace      string `arg:"" name:"trace-file" help:"Instruction trace of the simulator run (plain, gzip or zstd)."`
	Executable string `arg:"" name:"executable" help:"Executable the traced code was built into."`

	Symbols    string `enum:"nm,elf,file" default:"nm" help:"Where symbols come from: the nm tool, the ELF symbol tables, or a pre-made dump (${enum})."`
	Nm         string `default:"nm" help:"nm-compatible tool used with --symbols=nm."`
	SymbolFile string `placeholder:"FILE" help:"Symbol dump in nm format, used with --symbols=file."`

	LogLevel string `enum:"debug,info,warn,error" default:"info" help:"Log level for diagnostics on stderr (${enum})."`
	Color    string `enum:"auto,always,never" default:"auto" help:"Colorize warnings and the stop banner (${enum})."`

	Summary bool `help:"Print a per-function instruction table to stderr after the trace."`
	Top     int  `default:"20" help:"Rows in the summary table, 0 for all."`

	Pprof        string `placeholder:"FILE" help:"Write per-function instruction counts as a gzipped pprof profile."`
	Otlp         string `placeholder:"FILE" help:"Write per-function instruction counts as an OTLP profiles export request."`
	OtlpEndpoint string `placeholder:"HOST:PORT" help:"Push per-function instruction counts to an OTLP gRPC endpoint."`
	Folded       string `placeholder:"FILE" help:"Write per-function instruction counts as folded stacks."`
}

// UsageError reports a command line that could not be parsed.
type UsageError struct {
	err error
}

func (e *UsageError) Error() string { return e.err.Error() }

func (e *UsageError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	c, err := parseArgs(args, stdout, stderr)
	if err != nil {
		return exitUsage
	}
	setupLogging(stderr, c.LogLevel)

	if err := annotate(context.Background(), c, stdout, stderr); err != nil {
		slog.Error("Failed to annotate trace", "error", err)
		return exitFailure
	}
	return 0
}

func parseArgs(args []string, stdout, stderr io.Writer) (*cli, error) {
	var c cli
	parser, err := kong.New(&c,
		kong.Name("simtrace"),
		kong.Description("Print the sequence of functions executed in a simulator instruction trace."),
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		return nil, err
	}
	if _, err := parser.Parse(args); err != nil {
		fmt.Fprintf(stderr, "simtrace: error: %v\n", err)
		var pe *kong.ParseError
		if errors.As(err, &pe) && pe.Context != nil {
			pe.Context.Stdout = stderr
			_ = pe.Context.PrintUsage(true)
		}
		return nil, &UsageError{err: err}
	}
	return &c, nil
}

func setupLogging(w io.Writer, level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
}

func annotate(ctx context.Context, c *cli, stdout, stderr io.Writer) error {
	table, err := symbolizer.LoadSymbolTable(symbolizer.Source(c.Symbols), c.Executable, symbolizer.LoadOptions{
		NmTool:     c.Nm,
		SymbolFile: c.SymbolFile,
	})
	if err != nil {
		return fmt.Errorf("load symbols: %w", err)
	}

	in, err := trace.Open(c.Trace)
	if err != nil {
		return err
	}
	defer in.Close()

	stats := trace.NewStats()
	opts := []trace.Option{trace.WithObserver(stats)}
	if useColor(c.Color, stdout) {
		opts = append(opts, trace.WithStyle(colorStyle()))
	}

	start := time.Now()
	summary, err := trace.NewDriver(symbolizer.NewResolver(table), stdout, opts...).Run(in)
	if err != nil {
		return fmt.Errorf("trace %s: %w", c.Trace, err)
	}
	slog.Info("Trace annotated",
		"lines", summary.Lines,
		"instructions", summary.Records,
		"discarded", summary.Discarded,
		"unknown_code", summary.OutOfRange,
		"functions", len(stats.Functions()),
		"duration", time.Since(start),
	)

	if c.Summary {
		if err := exporter.WriteSummary(stderr, summary, stats, c.Top); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	return export(ctx, c, stats, start)
}

func export(ctx context.Context, c *cli, stats *trace.Stats, start time.Time) error {
	funcs := stats.Functions()

	if c.Pprof != "" {
		prof, err := pprof.BuildPprofProfile(funcs, "instructions", "count", start)
		if err != nil {
			return fmt.Errorf("build pprof profile: %w", err)
		}
		f, err := os.Create(c.Pprof)
		if err != nil {
			return fmt.Errorf("create pprof output: %w", err)
		}
		if err := pprof.WriteProfileGzip(prof, f); err != nil {
			f.Close()
			return fmt.Errorf("write pprof profile %s: %w", c.Pprof, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("write pprof profile %s: %w", c.Pprof, err)
		}
		slog.Info("Wrote pprof profile", "path", c.Pprof)
	}

	if c.Otlp != "" || c.OtlpEndpoint != "" {
		now := func() uint64 { return uint64(start.UnixNano()) }
		data := exporter.BuildOltpProfile(funcs, c.Executable, now)
		if c.Otlp != "" {
			if err := exporter.WriteOltpProfile(data, c.Otlp); err != nil {
				return fmt.Errorf("write OTLP profile %s: %w", c.Otlp, err)
			}
			slog.Info("Wrote OTLP profile", "path", c.Otlp)
		}
		if c.OtlpEndpoint != "" {
			if err := exporter.PushOltpProfile(ctx, c.OtlpEndpoint, data); err != nil {
				return err
			}
			slog.Info("Pushed OTLP profile", "endpoint", c.OtlpEndpoint)
		}
	}

	if c.Folded != "" {
		agg := exporter.BuildFoldedStacks(funcs, filepath.Base(c.Executable))
		if err := exporter.WriteFoldedStacksToFile(agg, c.Folded); err != nil {
			return fmt.Errorf("write folded stacks %s: %w", c.Folded, err)
		}
		slog.Info("Wrote folded stacks", "path", c.Folded)
	}
	return nil
}

func useColor(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func colorStyle() trace.Style {
	warning := color.New(color.FgYellow)
	warning.EnableColor()
	banner := color.New(color.FgCyan, color.Bold)
	banner.EnableColor()
	return trace.Style{Warning: warning.SprintFunc(), Banner: banner.SprintFunc()}
}
