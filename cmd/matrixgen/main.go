package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"matrixgen/internal/config"
	"matrixgen/internal/labels"
	"matrixgen/internal/matrix"
)

var (
	// Global flags
	verbose     bool
	targetsPath string
	runnersPath string

	// Generation flags
	platformFlag string
	maxShards    int
	labelsFlag   string
	freeRunners  bool

	// Logger (stderr; stdout carries only the matrix JSON)
	logger = zap.NewNop()
)

// rootCmd generates the matrix; validate is the only subcommand.
var rootCmd = &cobra.Command{
	Use:   "matrixgen",
	Short: "Generate a JSON matrix for building distributions in CI",
	Long: `matrixgen expands the target configuration and runner registry into the
JSON job matrix consumed by the CI workflow.

Each (platform, target triple) pair is expanded across its Python
versions and build options, assigned a runner from the registry, then
optionally filtered by labels and sharded to stay under the per-matrix
job limit of GitHub Actions.

The matrix is written to standard output; warnings and errors go to
standard error.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runGenerate,
}

// validateCmd loads both documents and reports, without generating.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the target configuration and runner registry for errors",
	Long: `Loads and validates both input documents, reporting counts on success.
Useful as a pre-merge check when editing the configuration.`,
	RunE: runValidate,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&targetsPath, "targets", "ci-targets.yaml", "Path to the target configuration document")
	rootCmd.PersistentFlags().StringVar(&runnersPath, "runners", "ci-runners.yaml", "Path to the runner registry document")

	rootCmd.Flags().StringVar(&platformFlag, "platform", "", "Filter matrix entries by platform (darwin, linux, or windows)")
	rootCmd.Flags().IntVar(&maxShards, "max-shards", 0, "The maximum number of shards allowed; set to zero to disable sharding")
	rootCmd.Flags().StringVar(&labelsFlag, "labels", "", "Comma-separated list of labels to filter by (e.g., 'platform:darwin,python:3.13,build:debug'), all must match")
	rootCmd.Flags().BoolVar(&freeRunners, "free-runners", false, "If only free runners should be used")

	rootCmd.AddCommand(validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runGenerate is the full pipeline: load, expand, filter, shard, emit.
func runGenerate(cmd *cobra.Command, args []string) error {
	switch platformFlag {
	case "", "darwin", "linux", "windows":
	default:
		return fmt.Errorf("invalid --platform %q (expected darwin, linux, or windows)", platformFlag)
	}

	filters := labels.Parse(labelsFlag, labels.DefaultSkipLabels)

	targets, err := config.LoadTargets(targetsPath)
	if err != nil {
		return err
	}
	runners, err := config.LoadRunners(runnersPath)
	if err != nil {
		return err
	}

	if freeRunners {
		runners = runners.Free()
		logger.Debug("restricted registry to free runners", zap.Int("runners", len(runners.Defs)))
	}

	entries, err := matrix.Expand(targets, runners, matrix.Options{
		Platform:   platformFlag,
		Directives: filters.Directives(),
	})
	if err != nil {
		return err
	}
	logger.Debug("matrix expanded", zap.Int("entries", len(entries)))

	entries = matrix.Filter(entries, filters)
	logger.Debug("label filters applied", zap.Int("entries", len(entries)))

	return writeMatrix(cmd.OutOrStdout(), entries)
}

func writeMatrix(w io.Writer, entries []matrix.Entry) error {
	if entries == nil {
		entries = []matrix.Entry{}
	}

	if maxShards > 0 {
		shards, err := matrix.Shard(entries, maxShards)
		if err != nil {
			return err
		}
		return matrix.Emit(w, shards)
	}

	if len(entries) > matrix.SizeLimit {
		logger.Warn("matrix exceeds the size limit but sharding is not enabled; consider setting `--max-shards`",
			zap.Int("entries", len(entries)),
			zap.Int("limit", matrix.SizeLimit))
	}
	return matrix.Emit(w, matrix.Include{Include: entries})
}

// runValidate loads both documents and reports what it found.
func runValidate(cmd *cobra.Command, args []string) error {
	targets, err := config.LoadTargets(targetsPath)
	if err != nil {
		return err
	}
	targetCount := 0
	for _, platform := range targets.Platforms {
		targetCount += len(platform.Targets)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "targets: OK (%d platforms, %d targets)\n", len(targets.Platforms), targetCount)

	runners, err := config.LoadRunners(runnersPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "runners: OK (%d runners)\n", len(runners.Defs))
	return nil
}
