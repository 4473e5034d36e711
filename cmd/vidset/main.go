package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/ryanjyoder/vidset"
)

func main() {
	_ = godotenv.Load()

	var (
		runAll     = pflag.Bool("all", false, "run the full pipeline: convert, download, extract, cleanup")
		runConvert = pflag.Bool("convert", false, "convert the TSV link list to JSON")
		download   = pflag.StringSlice("download", nil, "download files (no value or \"all\" for everything, names or globs otherwise)")
		extract    = pflag.StringSlice("extract", nil, "extract tar archives (no value or \"all\" for everything)")
		runCleanup = pflag.Bool("cleanup", false, "remove non-video files from the dataset directory")
		runSummary = pflag.Bool("summary", false, "print dataset status")
		runList    = pflag.Bool("list", false, "list available, downloaded and extracted files")

		configPath = pflag.String("config", "", "directory containing vidset.yaml")
	)
	pflag.String("tsv-file", "", "input TSV file")
	pflag.String("links-file", "", "link mapping JSON file")
	pflag.String("downloads-dir", "", "directory for downloaded archives")
	pflag.String("dataset-dir", "", "directory for extracted content")
	pflag.Int("max-files", 0, "download at most N files (0 = no limit)")
	pflag.Int64("parallel", 0, "simultaneous downloads (default 1)")
	pflag.Int64("rate-limit", 0, "download bandwidth cap in bytes/s (0 = unlimited)")
	pflag.Bool("flatten", false, "flatten archive paths during extraction")
	pflag.StringSlice("keep-extensions", nil, "file extensions to keep during cleanup")
	pflag.Bool("auto-cleanup", false, "skip the cleanup confirmation prompt")
	pflag.Bool("dry-run", false, "show what cleanup would delete without deleting")
	pflag.Bool("strict", false, "exit non-zero on any per-item failure")
	pflag.Bool("debug", false, "enable debug logging")

	pflag.Lookup("download").NoOptDefVal = "all"
	pflag.Lookup("extract").NoOptDefVal = "all"
	pflag.Parse()

	cfg, err := vidset.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error loading config:", err)
		os.Exit(1)
	}
	applyFlags(&cfg)

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(level).With().Timestamp().Logger()

	wantDownload := pflag.Lookup("download").Changed
	wantExtract := pflag.Lookup("extract").Changed
	if !*runAll && !*runConvert && !wantDownload && !wantExtract &&
		!*runCleanup && !*runSummary && !*runList {
		pflag.Usage()
		return
	}

	ctx := context.Background()
	var reports []*vidset.Report

	if *runAll {
		p := vidset.Pipeline{Config: cfg, Log: log}
		reports, err = p.Run(ctx)
		if err != nil {
			log.Error().Err(err).Msg("pipeline aborted")
			os.Exit(1)
		}
	} else {
		if *runConvert {
			report, err := vidset.ConvertLinks(cfg.TSVFile, cfg.LinksFile, log)
			if err != nil {
				log.Error().Err(err).Msg("conversion failed")
				os.Exit(1)
			}
			reports = append(reports, report)
		}

		if wantDownload {
			links, err := vidset.LoadLinks(cfg.LinksFile)
			if err != nil {
				log.Error().Err(err).Msg("no link mapping; run --convert first")
				os.Exit(1)
			}
			report, err := vidset.NewDownloader(links, cfg, log).Run(ctx, selectors(*download))
			if err != nil {
				log.Error().Err(err).Msg("download stage failed")
				os.Exit(1)
			}
			reports = append(reports, report)
		}

		if wantExtract {
			report, err := vidset.NewExtractor(cfg, log).Run(selectors(*extract))
			if err != nil {
				log.Error().Err(err).Msg("extract stage failed")
				os.Exit(1)
			}
			reports = append(reports, report)
		}

		if *runCleanup {
			report, err := vidset.NewCleaner(cfg, log).Run()
			if err != nil {
				log.Error().Err(err).Msg("cleanup stage failed")
				os.Exit(1)
			}
			reports = append(reports, report)
		}
	}

	if *runSummary || *runList {
		printSummary(cfg, *runList)
	}

	for _, report := range reports {
		for _, err := range report.Errors {
			log.Warn().Str("stage", report.Stage).Msg(err.Error())
		}
		log.Info().Msg(report.String())
	}
	if cfg.Strict && vidset.TotalFailures(reports) > 0 {
		os.Exit(1)
	}
}

// selectors turns the flag value into a subset selection; the "all"
// sentinel (the bare-flag default) means no restriction.
func selectors(args []string) []string {
	if len(args) == 1 && args[0] == "all" {
		return nil
	}
	return args
}

// applyFlags copies every flag the user actually set over the loaded
// config, so the precedence is flags > env > file > defaults.
func applyFlags(cfg *vidset.Config) {
	pflag.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "tsv-file":
			cfg.TSVFile, _ = pflag.CommandLine.GetString(f.Name)
		case "links-file":
			cfg.LinksFile, _ = pflag.CommandLine.GetString(f.Name)
		case "downloads-dir":
			cfg.DownloadsDir, _ = pflag.CommandLine.GetString(f.Name)
		case "dataset-dir":
			cfg.DatasetDir, _ = pflag.CommandLine.GetString(f.Name)
		case "max-files":
			cfg.MaxFiles, _ = pflag.CommandLine.GetInt(f.Name)
		case "parallel":
			cfg.Parallel, _ = pflag.CommandLine.GetInt64(f.Name)
		case "rate-limit":
			cfg.RateLimit, _ = pflag.CommandLine.GetInt64(f.Name)
		case "flatten":
			cfg.Flatten, _ = pflag.CommandLine.GetBool(f.Name)
		case "keep-extensions":
			cfg.KeepExtensions, _ = pflag.CommandLine.GetStringSlice(f.Name)
		case "auto-cleanup":
			cfg.AutoCleanup, _ = pflag.CommandLine.GetBool(f.Name)
		case "dry-run":
			cfg.DryRun, _ = pflag.CommandLine.GetBool(f.Name)
		case "strict":
			cfg.Strict, _ = pflag.CommandLine.GetBool(f.Name)
		case "debug":
			cfg.Debug, _ = pflag.CommandLine.GetBool(f.Name)
		}
	})
}

func printSummary(cfg vidset.Config, listNames bool) {
	summary, err := vidset.Summarize(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error computing summary:", err)
		return
	}

	fmt.Printf("link mapping entries:  %d\n", summary.LinkCount)
	fmt.Printf("downloaded archives:   %d (%.1f MB)\n", summary.DownloadCount, mb(summary.DownloadBytes))
	fmt.Printf("dataset files:         %d (%.1f MB)\n", summary.DatasetFiles, mb(summary.DatasetBytes))
	fmt.Printf("video files kept:      %d\n", summary.VideoFiles)
	fmt.Printf("not yet downloaded:    %d\n", summary.Pending)

	if !listNames {
		return
	}
	links, err := vidset.LoadLinks(cfg.LinksFile)
	if err != nil {
		fmt.Println("no link mapping found; run --convert first")
		return
	}
	names := vidset.ListNames(links)
	fmt.Printf("available for download: %d files\n", len(names))
	for i, name := range names {
		if i == 10 {
			fmt.Printf("  ... and %d more files\n", len(names)-10)
			break
		}
		fmt.Printf("  %d. %s\n", i+1, name)
	}
}

func mb(bytes int64) float64 { return float64(bytes) / (1024 * 1024) }
