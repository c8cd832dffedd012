package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/neurotrace/internal/errors"
	"github.com/ppiankov/neurotrace/internal/metrics"
	"github.com/ppiankov/neurotrace/internal/model"
	"github.com/ppiankov/neurotrace/internal/pipeline"
	"github.com/ppiankov/neurotrace/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	listFile     string
	metricsFile  string
	batchTimeout time.Duration
	// noFooter and maxBytes are defined in validate.go and shared here
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [dir|bundle]...",
	Short: "Validate many patient bundles in parallel",
	Long: `Batch validates many patient bundles concurrently:
- Collect .json, .yaml and .yml bundles from directories and files
- Or read bundle paths from a list file (one per line)
- Validate bundles in parallel with a configurable worker count
- Write a JSON and Markdown report per patient
- Optionally write Prometheus metrics in textfile format

Example:
  neurotrace batch ./bundles
  neurotrace batch ./bundles --workers 8 --out-dir ./reports
  neurotrace batch --list bundles.txt --metrics-file neurotrace.prom`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	// Concurrency flags
	batchCmd.Flags().IntVar(&concurrency, "workers", 0, "number of concurrent workers (default from workers.concurrency)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	_ = viper.BindPFlag("workers.concurrency", batchCmd.Flags().Lookup("workers"))

	// Input and output flags
	batchCmd.Flags().StringVar(&listFile, "list", "", "file listing bundle paths, one per line")
	batchCmd.Flags().StringVar(&outputDir, "out-dir", "./neurotrace-reports", "output directory for reports")
	batchCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	batchCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	batchCmd.Flags().Int64Var(&maxBytes, "max-bytes", pipeline.DefaultMaxBundleBytes, "max bundle bytes to read")
}

func runBatch(cmd *cobra.Command, args []string) error {
	if listFile == "" && len(args) == 0 {
		return errors.WithHint(errors.New("no bundles given"), "pass directories or bundle files, or use --list")
	}

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	engine, err := pipeline.NewEngine(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	workers := cfg.Workers.Concurrency
	input := strings.Join(args, ", ")
	if listFile != "" {
		input = listFile
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Neurotrace Batch Validation\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input:        %s\n", input)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	recorder := metrics.NewRecorder()
	processor := worker.NewBatchProcessor(engine, pipeline.NewLoader(maxBytes), workers).
		WithObserver(recorder)

	fmt.Fprintf(os.Stderr, "⚙️  Collecting bundles...\n")
	var results []*worker.BundleResult
	if listFile != "" {
		results, err = processor.ProcessList(ctx, listFile)
		if err != nil {
			return fmt.Errorf("process list: %w", err)
		}
	} else {
		paths, err := pipeline.Discover(args)
		if err != nil {
			return fmt.Errorf("discover bundles: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Found %d bundles\n", len(paths))
		fmt.Fprintf(os.Stderr, "⚙️  Validating with %d workers...\n", workers)
		results = processor.ProcessFiles(ctx, paths)
	}
	fmt.Fprintf(os.Stderr, "\n")

	names := make(map[string]int)
	for _, result := range results {
		if result.Error != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}

		slug := uniqueName(names, sanitizeFilename(result.PatientID))
		jsonPath := filepath.Join(outputDir, slug+".json")
		mdPath := filepath.Join(outputDir, slug+".md")
		if err := renderReport(result.Report, jsonPath, mdPath, !noFooter); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, err)
			continue
		}

		fmt.Fprintf(os.Stderr, "%s %s (score: %.2f/100, alerts: %d)\n",
			batchMark(result.Report), result.PatientID, result.Report.Overall, len(result.Report.Alerts))
	}

	if metricsFile != "" {
		if err := recorder.WriteTextfile(metricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	// Summary
	summary := worker.Summarize(results)
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:            %d bundles\n", summary.Total)
	fmt.Fprintf(os.Stderr, "  Failures:         %d\n", summary.Failed)
	fmt.Fprintf(os.Stderr, "  Safe:             %d\n", summary.Safe)
	fmt.Fprintf(os.Stderr, "  Requires review:  %d\n", summary.RequiresReview)
	fmt.Fprintf(os.Stderr, "  Critical alerts:  %d\n", summary.CriticalAlerts)
	fmt.Fprintf(os.Stderr, "  Output:           %s\n", outputDir)
	if metricsFile != "" {
		fmt.Fprintf(os.Stderr, "  Metrics:          %s\n", metricsFile)
	}
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

func batchMark(report *model.ValidationReport) string {
	switch {
	case !report.SafeForClinicalUse:
		return "✗"
	case report.RequiresReview:
		return "!"
	default:
		return "✓"
	}
}

// sanitizeFilename turns a patient id into a safe file name
func sanitizeFilename(s string) string {
	s = strings.TrimSpace(s)
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	s = replacer.Replace(s)
	s = strings.Trim(s, ".")
	if s == "" {
		s = "patient"
	}

	// Limit length
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// uniqueName suffixes repeated names so reports never overwrite each other
func uniqueName(seen map[string]int, name string) string {
	n := seen[name]
	seen[name] = n + 1
	if n == 0 {
		return name
	}
	return name + "-" + strconv.Itoa(n+1)
}
