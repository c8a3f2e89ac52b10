// Command erma is the batch click-detector driver (C9): it loads a run's
// configuration, shakes hands with the host over GPIO, and processes every
// unprocessed sound file it finds under a base directory, writing the
// all-detections log and encounter upload file as it goes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	charmlog "github.com/charmbracelet/log"
	"github.com/cimerspi/erma/internal/cli"
	"github.com/cimerspi/erma/internal/config"
	"github.com/cimerspi/erma/internal/ermaerr"
	"github.com/cimerspi/erma/internal/gpio"
	"github.com/cimerspi/erma/internal/logging"
	"github.com/cimerspi/erma/internal/pipeline"
	"github.com/cimerspi/erma/internal/watchdog"
)

// version is set via ldflags at build time.
// Local dev builds: "dev"
// Release builds: git tag (e.g. "0.1.0")
var version = "dev"

// CLI defines the command-line interface for a single ERMA run.
type CLI struct {
	Version    bool   `short:"v" help:"Show version information"`
	Debug      bool   `short:"d" help:"Enable debug logging to stderr"`
	ConfigFile string `help:"Config file name, relative to base-dir" default:"erma.cfg"`
	GPIOChip   string `help:"GPIO character device to use for the host handshake" default:"/dev/gpiochip0"`
	Report     string `help:"Write a plain-text run report to this path" optional:""`
	BaseDir    string `arg:"" name:"base-dir" help:"Directory shared with the recorder, holding input files and bookkeeping" type:"existingdir" optional:""`
}

func main() {
	cliArgs := &CLI{}
	ctx := kong.Parse(cliArgs,
		kong.Name("erma"),
		kong.Description("Energy Ratio Mapping Algorithm: edge-deployed toothed-whale click detector"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	if cliArgs.Version {
		cli.PrintVersion(version)
		os.Exit(0)
	}

	if cliArgs.BaseDir == "" {
		cli.PrintError("No base directory specified")
		ctx.PrintUsage(false)
		os.Exit(1)
	}

	logLevel := charmlog.InfoLevel
	if cliArgs.Debug {
		logLevel = charmlog.DebugLevel
	}
	logger := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		Level:           logLevel,
	})

	if err := run(cliArgs, logger); err != nil {
		logger.Error(err.Error())
		os.Exit(ermaerr.ExitCode(err))
	}
}

func run(cliArgs *CLI, logger *charmlog.Logger) error {
	cli.PrintBanner()

	p, err := config.Load(cliArgs.BaseDir, cliArgs.ConfigFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	hs, err := gpio.New(cliArgs.GPIOChip, p.GPIOWisprActive, p.GPIORPiActive)
	if err != nil {
		logger.Warn("GPIO handshake unavailable, treating host as always active", "err", err)
	}
	defer hs.Close()

	pl, err := pipeline.New(cliArgs.BaseDir, p, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wallStart := time.Now()
	sum, err := pl.Run(ctx, hs, watchdog.Noop{})
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}
	duration := cli.FormatDuration(time.Since(wallStart))

	cli.PrintRunSummary(sum.FilesProcessed, sum.FilesSkipped, sum.TotalClicks, sum.Encounters, duration)

	if cliArgs.Report != "" {
		files := make([]logging.FileSummary, len(sum.Files))
		for i, fr := range sum.Files {
			files[i] = logging.FileSummary{
				Name:       fr.Name,
				Rate:       fr.Rate,
				DurationS:  fr.DurationS,
				QuietSpans: fr.QuietSpans,
				Clicks:     fr.Clicks,
			}
		}
		data := logging.RunReportData{
			BaseDir:     cliArgs.BaseDir,
			StartTime:   wallStart,
			EndTime:     time.Now(),
			Files:       files,
			Encounters:  sum.Encounters,
			TotalClicks: sum.TotalClicks,
			FastQuit:    sum.FastQuit,
		}
		if err := logging.GenerateReport(cliArgs.Report, data); err != nil {
			logger.Warn("could not write run report", "err", err)
		}
	}

	return nil
}
