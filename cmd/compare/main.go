// Package main provides a command line tool that compares the fastest laps of
// several drivers in one session.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/analysis"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/app"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/config"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/render"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/session"
)

// options are the parsed command line flags.
type options struct {
	request  analysis.Request
	plotPath string
	verbose  bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "compare:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	level := zerolog.WarnLevel
	if opts.verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: stderr}).Level(level).With().Timestamp().Logger()

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}

	services, err := app.Build(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}
	defer services.Close()

	result, err := services.Compare.Compare(ctx, opts.request)
	if err != nil {
		return fmt.Errorf("compare %s: %w", opts.request.Key, err)
	}
	for _, loadErr := range result.LoadErrors {
		log.Warn().Err(loadErr.Err).Str("driver", loadErr.Driver).Msg("driver skipped")
	}

	fmt.Fprintf(stdout, "%d %s - %s\n", opts.request.Key.Year, opts.request.Key.Event, opts.request.Key.Type.Name())
	render.WriteTable(stdout, result)
	render.WriteSummary(stdout, result)

	if opts.plotPath != "" {
		if err := render.SaveTraces(opts.plotPath, result); err != nil {
			return fmt.Errorf("render traces: %w", err)
		}
		fmt.Fprintf(stdout, "\nTraces written to %s\n", opts.plotPath)
	}
	return nil
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	fs.SetOutput(stderr)

	year := fs.Int("year", 0, "season year")
	race := fs.String("race", "", "event name, e.g. Bahrain")
	sessionName := fs.String("session", string(session.DefaultSessionType), "session type (FP1, FP2, FP3, Q, SQ, S, R)")
	drivers := fs.String("drivers", "", "comma separated driver codes, e.g. VER,LEC")
	plotPath := fs.String("plot", "", "write speed and delta traces to this PNG file")
	verbose := fs.Bool("v", false, "verbose logging")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	sessionType, err := session.ParseSessionType(*sessionName)
	if err != nil {
		return options{}, err
	}
	key := session.Key{Year: *year, Event: strings.TrimSpace(*race), Type: sessionType}
	if err := key.Validate(); err != nil {
		return options{}, err
	}

	codes := analysis.NormalizeDrivers(strings.Split(*drivers, ","))
	if len(codes) == 0 {
		return options{}, errors.New("at least one driver is required")
	}

	return options{
		request:  analysis.Request{Key: key, Drivers: codes},
		plotPath: *plotPath,
		verbose:  *verbose,
	}, nil
}
