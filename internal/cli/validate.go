package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/neurotrace/internal/errors"
	"github.com/ppiankov/neurotrace/internal/model"
	"github.com/ppiankov/neurotrace/internal/pipeline"
)

var (
	outJSON    string
	outMD      string
	timeout    time.Duration
	maxBytes   int64
	noFooter   bool
	noSummary  bool
	failUnsafe bool
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate <bundle>",
	Short: "Validate one patient's fact set and generate a report",
	Long: `Validate evaluates a patient bundle (.json, .yaml or .yml) to:
- Resolve every fact onto the patient timeline
- Detect temporal conflicts
- Fire neurosurgical safety rules
- Score completeness, accuracy, temporal coherence, contradictions,
  missing data and cross-validation
- Decide whether the fact set is safe for clinical use

Example:
  neurotrace validate patient.json
  neurotrace validate patient.yaml --json report.json --md report.md
  neurotrace validate patient.json --json - --no-summary | jq .overall_score`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	// Output flags
	validateCmd.Flags().StringVar(&outJSON, "json", "report.json", "output JSON path (- for stdout)")
	validateCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	validateCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	validateCmd.Flags().BoolVar(&noSummary, "no-summary", false, "do not print the terminal summary")
	validateCmd.Flags().BoolVar(&failUnsafe, "fail-unsafe", false, "exit non-zero when the report is not safe for clinical use")

	// Input flags
	validateCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "evaluation timeout")
	validateCmd.Flags().Int64Var(&maxBytes, "max-bytes", pipeline.DefaultMaxBundleBytes, "max bundle bytes to read")
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	engine, err := newEngine()
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Validating: %s\n", path)
		fmt.Fprintf(os.Stderr, "Timeout: %v\n", timeout)
		fmt.Fprintln(os.Stderr)
		fmt.Fprintf(os.Stderr, "⚙️  Loading bundle...\n")
	}

	bundle, err := loadBundle(path)
	if err != nil {
		return err
	}

	report, err := engine.Validate(ctx, bundle.Facts, bundle.EffectiveContext())
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Resolved %d of %d facts on the timeline\n", report.Timeline.ResolvedCount(), len(bundle.Facts))
		fmt.Fprintf(os.Stderr, "✓ Detected %d temporal conflicts\n", len(report.Conflicts))
		fmt.Fprintf(os.Stderr, "✓ Raised %d clinical alerts\n", len(report.Alerts))
		fmt.Fprintf(os.Stderr, "✓ Calculated overall score: %.2f/100\n", report.Overall)
		fmt.Fprintln(os.Stderr)
	}

	// Render outputs
	if err := renderReport(report, outJSON, outMD, !noFooter); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	if !noSummary {
		pipeline.NewRenderer(!noFooter).RenderSummary(os.Stderr, report)
	}

	if failUnsafe && !report.SafeForClinicalUse {
		return errors.Newf("report %s is not safe for clinical use", report.ReportID)
	}
	return nil
}

// renderReport writes the JSON and optional Markdown outputs
func renderReport(report *model.ValidationReport, jsonPath, mdPath string, footer bool) error {
	r := pipeline.NewRenderer(footer)
	if jsonPath != "" {
		if err := r.RenderJSON(report, jsonPath); err != nil {
			return err
		}
		if verbose && jsonPath != "-" {
			fmt.Fprintf(os.Stderr, "✓ JSON report: %s\n", jsonPath)
		}
	}
	if mdPath != "" {
		if err := r.RenderMarkdown(report, mdPath); err != nil {
			return err
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Markdown report: %s\n", mdPath)
		}
	}
	return nil
}

// newEngine builds an engine from the layered configuration
func newEngine() (*pipeline.Engine, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return pipeline.NewEngine(cfg)
}

// loadBundle reads a bundle honouring --max-bytes where the command defines it
func loadBundle(path string) (*model.PatientBundle, error) {
	bundle, err := pipeline.NewLoader(maxBytes).Load(path)
	if err != nil {
		return nil, fmt.Errorf("load failed: %w", err)
	}
	return bundle, nil
}
