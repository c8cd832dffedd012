package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/neurotrace/internal/model"
	"github.com/ppiankov/neurotrace/internal/pipeline"
	"github.com/ppiankov/neurotrace/internal/rules"
)

var rulesJSON bool

// rulesCmd represents the rules command
var rulesCmd = &cobra.Command{
	Use:   "rules <bundle>",
	Short: "Evaluate the clinical safety rules against a bundle",
	Long: `Rules runs the enabled neurosurgical safety rules against a bundle and
prints the alerts they raise, most severe first.

Rule categories are switched on and off in the rules section of the
configuration file.

Example:
  neurotrace rules patient.json
  neurotrace rules list`,
	Args: cobra.ExactArgs(1),
	RunE: runRules,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the rule catalogue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		return printCatalogue(cmd.OutOrStdout(), rules.Catalogue(), cfg.Rules)
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.Flags().BoolVar(&rulesJSON, "json", false, "print alerts as JSON")
}

func runRules(cmd *cobra.Command, args []string) error {
	engine, err := newEngine()
	if err != nil {
		return err
	}
	bundle, err := loadBundle(args[0])
	if err != nil {
		return err
	}

	alerts, err := engine.EvaluateRules(bundle.Facts, bundle.EffectiveContext())
	if err != nil {
		return fmt.Errorf("rule evaluation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if rulesJSON {
		return pipeline.NewRenderer(false).WriteJSON(out, alerts)
	}
	printAlerts(out, alerts)
	return nil
}

func printAlerts(w io.Writer, alerts []model.ClinicalAlert) {
	if len(alerts) == 0 {
		fmt.Fprintln(w, pterm.Green("✓ No clinical alerts"))
		return
	}
	for _, a := range alerts {
		fmt.Fprintf(w, "[%s] %s %s\n", strings.ToUpper(string(a.Severity)), a.RuleID, a.Title)
		fmt.Fprintf(w, "    %s\n", a.Message)
		fmt.Fprintf(w, "    → %s\n", a.Recommendation)
		fmt.Fprintf(w, "    facts: %s\n\n", strings.Join(a.FactIDs, ", "))
	}
	fmt.Fprintf(w, "%d alert(s)\n", len(alerts))
}

func printCatalogue(w io.Writer, catalogue []rules.Rule, enabled model.RulesConfig) error {
	data := pterm.TableData{{"Rule", "Category", "Severity", "Enabled", "Title"}}
	for _, r := range catalogue {
		on := "yes"
		if !enabled.Enabled(r.Category) {
			on = "no"
		}
		data = append(data, []string{r.ID, string(r.Category), string(r.Severity), on, r.Title})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, table)
	return nil
}
