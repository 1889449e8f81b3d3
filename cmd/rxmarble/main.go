// Command rxmarble runs YAML marble scenarios against rxcore operators on virtual time.
//
// Run with "run <files...>" to check scenarios, or "list" to print the known operators.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"gopkg.in/yaml.v3"

	"github.com/xinjiayu/rxcore/internal/marble"
)

var errScenariosFailed = errors.New("some scenarios failed")

func main() {
	root := &ffcli.Command{
		Exec: func(ctx context.Context, args []string) error {
			return flag.ErrHelp
		},
		ShortUsage: "rxmarble <run|list> [flags]",
		ShortHelp:  "virtual-time scenario runner for rxcore",
		FlagSet:    flag.NewFlagSet("rxmarble", flag.ExitOnError),
		Subcommands: []*ffcli.Command{
			{
				Name:       "run",
				ShortUsage: "run [flags] <file.yaml>...",
				ShortHelp:  "Run scenarios and compare them with their expectations",
				FlagSet:    buildRunFlags(),
				Options:    []ff.Option{ff.WithEnvVarPrefix("RXMARBLE")},
				Exec: func(ctx context.Context, args []string) error {
					if len(args) < 1 {
						return flag.ErrHelp
					}
					return run(os.Stdout, args)
				},
			},
			{
				Name:       "list",
				ShortUsage: "list",
				ShortHelp:  "List the operators scenarios may use",
				Exec: func(ctx context.Context, args []string) error {
					for _, name := range marble.Operators() {
						fmt.Println(name)
					}
					return nil
				},
			},
		},
	}

	if err := root.ParseAndRun(context.Background(), os.Args[1:]); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

var runFlags struct {
	verbose bool
	format  string
}

func buildRunFlags() *flag.FlagSet {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	fs.BoolVar(&runFlags.verbose, "v", false, "log every scenario at debug level")
	fs.StringVar(&runFlags.format, "format", "text", "output format: text or yaml")
	return fs
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if runFlags.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func run(w io.Writer, files []string) error {
	if runFlags.format != "text" && runFlags.format != "yaml" {
		return fmt.Errorf("unknown format %q", runFlags.format)
	}

	runner := marble.NewRunner(newLogger())
	var results []marble.Result
	for _, file := range files {
		scenarios, err := marble.LoadFile(file)
		if err != nil {
			return err
		}
		rs, err := runner.RunAll(scenarios)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		results = append(results, rs...)
	}

	if err := report(w, results); err != nil {
		return err
	}
	for _, r := range results {
		if !r.Passed {
			return errScenariosFailed
		}
	}
	return nil
}

func report(w io.Writer, results []marble.Result) error {
	if runFlags.format == "yaml" {
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(results)
	}

	passed := 0
	for _, r := range results {
		if r.Passed {
			passed++
			fmt.Fprintf(w, "PASS  %s\n", r.Name)
			continue
		}
		fmt.Fprintf(w, "FAIL  %s\n%s\n", r.Name, r.Diff)
	}
	fmt.Fprintf(w, "%d/%d scenarios passed\n", passed, len(results))
	return nil
}
