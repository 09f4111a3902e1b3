package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/rs/xid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/turbot/edgar-log-pipeline/artifact_loader"
	"github.com/turbot/edgar-log-pipeline/artifact_source"
	"github.com/turbot/edgar-log-pipeline/bot_filter"
	"github.com/turbot/edgar-log-pipeline/config"
	"github.com/turbot/edgar-log-pipeline/context_values"
	"github.com/turbot/edgar-log-pipeline/enrichment"
	"github.com/turbot/edgar-log-pipeline/filepaths"
	"github.com/turbot/edgar-log-pipeline/geolocation"
	"github.com/turbot/edgar-log-pipeline/helpers"
	"github.com/turbot/edgar-log-pipeline/logging"
	"github.com/turbot/edgar-log-pipeline/metrics"
	"github.com/turbot/edgar-log-pipeline/pipeline"
	"github.com/turbot/edgar-log-pipeline/table"
)

const (
	flagStartDate   = "start-date"
	flagEndDate     = "end-date"
	flagForce       = "force"
	flagConfig      = "config"
	flagBaseDir     = "base-dir"
	flagMetricsFile = "metrics-file"
)

// Build the cobra command that handles our command line tool.
func rootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("EDGAR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:   "edgar-logs --start-date YYYY-MM-DD [flags]",
		Short: "Download SEC EDGAR access logs, remove bot traffic and add geolocation",
		Long: `Download SEC EDGAR access logs, remove bot traffic and add geolocation.

Each date is processed through the stages fetch, extract, convert, filter_bots, enrich
and finalize. Stages whose output already exists are skipped unless --force is given.
A date which fails does not stop the others; the exit code is non-zero only if the run
could not be set up.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := parseRunOptions(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), opts)
		},
	}

	flags := rootCmd.Flags()
	flags.String(flagStartDate, "", "First date to process (YYYY-MM-DD)")
	flags.String(flagEndDate, "", "Last date to process (YYYY-MM-DD), defaults to the start date")
	flags.Bool(flagForce, false, "Rerun every stage, overwriting existing outputs")
	flags.String(flagConfig, "", "Path of the HCL config file, defaults to edgar.hcl in the base directory")
	flags.String(flagBaseDir, "", "Directory under which all stage outputs are written, overrides base_dir in the config")
	flags.String(flagMetricsFile, "", "Write run metrics to this file in the prometheus text format")
	_ = v.BindPFlags(flags)

	return rootCmd
}

type runOptions struct {
	start       time.Time
	end         time.Time
	force       bool
	configPath  string
	baseDir     string
	metricsFile string
}

func parseRunOptions(v *viper.Viper) (*runOptions, error) {
	startStr := v.GetString(flagStartDate)
	if startStr == "" {
		return nil, fmt.Errorf("--%s is required", flagStartDate)
	}
	start, err := helpers.ParseDate(startStr)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", flagStartDate, err)
	}

	end := start
	if endStr := v.GetString(flagEndDate); endStr != "" {
		end, err = helpers.ParseDate(endStr)
		if err != nil {
			return nil, fmt.Errorf("invalid --%s: %w", flagEndDate, err)
		}
	}
	if end.Before(start) {
		return nil, fmt.Errorf("--%s %s is before --%s %s", flagEndDate, helpers.FormatDate(end), flagStartDate, helpers.FormatDate(start))
	}

	return &runOptions{
		start:       start,
		end:         end,
		force:       v.GetBool(flagForce),
		configPath:  v.GetString(flagConfig),
		baseDir:     v.GetString(flagBaseDir),
		metricsFile: v.GetString(flagMetricsFile),
	}, nil
}

// loadConfig loads the config file and applies the base directory override
func loadConfig(opts *runOptions) (*config.Config, error) {
	configPath := opts.configPath
	if configPath == "" {
		dir := opts.baseDir
		if dir == "" {
			dir = "."
		}
		if expanded, err := homedir.Expand(dir); err == nil {
			configPath = config.DefaultPath(expanded)
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if opts.baseDir != "" {
		if cfg.BaseDir, err = homedir.Expand(opts.baseDir); err != nil {
			return nil, fmt.Errorf("invalid --%s: %w", flagBaseDir, err)
		}
	}
	return cfg, nil
}

func run(ctx context.Context, opts *runOptions) (err error) {
	executionId := xid.New().String()
	logging.Initialize(executionId)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	slog.Info("Starting run", "start_date", helpers.FormatDate(opts.start), "end_date", helpers.FormatDate(opts.end),
		"force", opts.force, "base_dir", cfg.BaseDir, "archive_source", cfg.Source.String(), "bot_filter", thresholds(cfg).String())

	layout := filepaths.NewLayout(cfg.BaseDir)
	if err := layout.Ensure(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = context_values.WithExecutionId(ctx, executionId)

	httpClient := artifact_source.SharedHTTPClient()

	fetcher, err := artifact_source.NewFetcher(ctx, cfg.Source, httpClient)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, fetcher.Close())
	}()

	resolver, err := geolocation.NewFromConfig(ctx, cfg.Geolocation, httpClient)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, resolver.Close())
	}()

	enricher, err := enrichment.NewEnricher(resolver,
		enrichment.WithMaxConcurrency(cfg.Geolocation.MaxConcurrency),
		enrichment.WithCacheSize(cfg.Geolocation.CacheSize))
	if err != nil {
		return err
	}

	var mappingFiles []string
	if cfg.Enrichment.CountryMappingFile != nil {
		mappingFiles = append(mappingFiles, *cfg.Enrichment.CountryMappingFile)
	}
	standardizer, err := enrichment.NewCountryStandardizer(mappingFiles...)
	if err != nil {
		return err
	}

	p, err := pipeline.New(pipeline.Deps{
		Layout:    layout,
		Fetcher:   fetcher,
		Extractor: artifact_loader.NewZipExtractor(),
		Converter: table.NewConverter(table.ConverterConfig{
			ExcludeIndexPages: boolValue(cfg.Converter.ExcludeIndexPages),
			ExcludeCrawlers:   boolValue(cfg.Converter.ExcludeCrawlers),
		}),
		Filter:       bot_filter.NewFilter(thresholds(cfg)),
		Enricher:     enricher,
		Standardizer: standardizer,
	}, pipeline.WithForce(opts.force), pipeline.WithExecutionId(executionId))
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	if err := p.AddObserver(pipeline.NewLogObserver(slog.Default())); err != nil {
		return err
	}
	if err := p.AddObserver(collector); err != nil {
		return err
	}

	summary, err := p.Run(ctx, opts.start, opts.end)
	if err != nil {
		return err
	}
	fmt.Println(summary.String())

	if opts.metricsFile != "" {
		if err := collector.WriteTextfile(opts.metricsFile); err != nil {
			slog.Error("Failed to write metrics", "error", err)
		}
	}
	return nil
}

func thresholds(cfg *config.Config) bot_filter.Thresholds {
	return bot_filter.Thresholds{
		MaxRequestsPerMinute: cfg.BotFilter.MaxRequestsPerMinute,
		MaxCiksPerMinute:     cfg.BotFilter.MaxCiksPerMinute,
		MaxRequestsPerDay:    cfg.BotFilter.MaxRequestsPerDay,
	}
}

func boolValue(b *bool) bool {
	return b != nil && *b
}

func Execute() int {
	rootCmd := rootCommand()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
