package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/barasher/go-exiftool"
	"github.com/spf13/cobra"

	"github.com/vgoulart/imgpress/internal/imgpress"
	"github.com/vgoulart/imgpress/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "imgpress",
	Short:   "Batch image recompression for year-organised photo trees",
	Long:    `Imgpress walks a directory tree organised by year, recompresses every recognised image through one fixed pipeline, and reports the aggregate savings.`,
	Version: version,
}

var runCmd = &cobra.Command{
	Use:   "run BASE_DIR",
	Short: "Compress all images under a base directory",
	Long:  `Walks BASE_DIR/{prefix}{year}/{dir-glob}/ for the given year range and recompresses every recognised image file, converting to the target format where configured.`,
	Args:  cobra.ExactArgs(1),
	Run:   runCompress,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Args:  cobra.NoArgs,
	Run:   runConfigInit,
}

var (
	configPath       string
	initConfigPath   string
	quality          int
	targetFormat     string
	maxWidth         int
	maxHeight        int
	startYear        int
	endYear          int
	yearPrefix       string
	dirGlob          string
	workers          int
	backupBucket     string
	preserveMetadata bool
	dryRun           bool
	logFile          string
	forceInit        bool
)

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "f", "", "Path to the configuration file (default ./imgpress.yaml when present)")
	runCmd.Flags().IntVarP(&quality, "quality", "q", 85, "Encode quality for JPEG/WEBP (1-100)")
	runCmd.Flags().StringVar(&targetFormat, "format", "", "Target format (JPEG, PNG, WEBP, BMP, TIFF)")
	runCmd.Flags().IntVar(&maxWidth, "max-width", 0, "Maximum output width in pixels (0 = no cap)")
	runCmd.Flags().IntVar(&maxHeight, "max-height", 0, "Maximum output height in pixels (0 = no cap)")
	runCmd.Flags().IntVar(&startYear, "from-year", 2000, "First year directory to process")
	runCmd.Flags().IntVar(&endYear, "to-year", time.Now().Year(), "Last year directory to process")
	runCmd.Flags().StringVar(&yearPrefix, "year-prefix", "", "Prefix of year directory names (for example \"album-\")")
	runCmd.Flags().StringVar(&dirGlob, "dir-glob", "*-images", "Glob matching image directories inside a year directory")
	runCmd.Flags().IntVarP(&workers, "workers", "w", 0, "Number of concurrent workers (0 = number of CPUs)")
	runCmd.Flags().StringVar(&backupBucket, "backup-bucket", "", "S3 bucket receiving originals before destructive steps")
	runCmd.Flags().BoolVar(&preserveMetadata, "preserve-metadata", false, "Copy EXIF metadata onto re-encoded output (requires exiftool)")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan and transform without writing, renaming or deleting files")
	runCmd.Flags().StringVar(&logFile, "log-file", "", "Also write logs to this file")

	configInitCmd.Flags().StringVarP(&initConfigPath, "config", "f", "imgpress.yaml", "Path of the configuration file to write")
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing configuration file")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(runCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCompress(cmd *cobra.Command, args []string) {
	baseDir := args[0]

	if logFile != "" {
		if err := logger.Setup(logFile); err != nil {
			logger.Error("Failed to set up log file", "path", logFile, "error", err)
			os.Exit(1)
		}
	}

	cfg, err := imgpress.LoadConfig(configPath)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	applyFlagOverrides(cmd, &cfg)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := imgpress.PipelineOptions{DryRun: dryRun}

	if backupBucket != "" {
		backup, err := imgpress.NewS3Backup(ctx, backupBucket)
		if err != nil {
			logger.Error("Failed to initialise S3 backup", "error", err)
			os.Exit(1)
		}
		opts.Backup = backup
	}

	if preserveMetadata {
		et, err := exiftool.NewExiftool()
		if err != nil {
			logger.Error("Failed to initialise exiftool", "error", err)
			os.Exit(1)
		}
		defer et.Close()
		opts.Metadata = imgpress.NewMetadataCopier(et)
	}

	pipeline, err := imgpress.NewPipeline(cfg, opts)
	if err != nil {
		logger.Error("Failed to initialise pipeline", "error", err)
		os.Exit(1)
	}

	walker := imgpress.NewDirectoryWalker(baseDir, yearPrefix, dirGlob, startYear, endYear)
	stats := imgpress.NewStatsAggregator()
	runner := imgpress.NewRunner(pipeline, walker, stats, workers)

	logger.Info("Starting compression run",
		"base", baseDir, "format", cfg.Format, "quality", cfg.Quality,
		"from_year", startYear, "to_year", endYear, "dry_run", dryRun)

	report, err := runner.Run(ctx)
	if err != nil {
		logger.Error("Run failed", "error", err)
		os.Exit(1)
	}

	fmt.Print(report.String())
}

// applyFlagOverrides lets explicitly-set flags win over the config file.
func applyFlagOverrides(cmd *cobra.Command, cfg *imgpress.Config) {
	if cmd.Flags().Changed("quality") {
		cfg.Quality = quality
	}
	if cmd.Flags().Changed("format") {
		cfg.Format = targetFormat
	}
	if cmd.Flags().Changed("max-width") {
		cfg.MaxWidth = maxWidth
	}
	if cmd.Flags().Changed("max-height") {
		cfg.MaxHeight = maxHeight
	}
}

func runConfigInit(cmd *cobra.Command, args []string) {
	if err := imgpress.WriteDefaultConfig(initConfigPath, forceInit); err != nil {
		logger.Error("Failed to write configuration", "path", initConfigPath, "error", err)
		os.Exit(1)
	}
	logger.Info("Default configuration written", "path", initConfigPath)
}
