package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/pterm/pterm"

	"github.com/ppiankov/neurotrace/internal/errors"
	"github.com/ppiankov/neurotrace/internal/model"
)

// Renderer writes validation reports as JSON, Markdown and terminal summaries
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a new renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderJSON writes v as indented JSON to path, or to stdout when path is "-".
func (r *Renderer) RenderJSON(v interface{}, path string) error {
	if path == "-" {
		return r.WriteJSON(os.Stdout, v)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create json output")
	}
	if err := r.WriteJSON(f, v); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteJSON encodes v as indented JSON.
func (r *Renderer) WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "encode json")
	}
	return nil
}

// RenderMarkdown writes the Markdown report to path.
func (r *Renderer) RenderMarkdown(report *model.ValidationReport, path string) error {
	if err := os.WriteFile(path, []byte(r.Markdown(report)), 0o644); err != nil {
		return errors.Wrap(err, "write markdown")
	}
	return nil
}

// Markdown renders a report as a Markdown document.
func (r *Renderer) Markdown(report *model.ValidationReport) string {
	var b strings.Builder

	title := "Validation Report"
	if report.PatientID != "" {
		title += ": " + report.PatientID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- Report ID: `%s`\n", report.ReportID)
	fmt.Fprintf(&b, "- Overall score: **%.2f**\n", report.Overall)
	fmt.Fprintf(&b, "- Safe for clinical use: **%s**\n", yesNo(report.SafeForClinicalUse))
	fmt.Fprintf(&b, "- Requires review: **%s**\n\n", yesNo(report.RequiresReview))

	b.WriteString("## Scores\n\n| Stage | Score | Issues |\n|---|---:|---:|\n")
	for _, s := range report.Stages {
		fmt.Fprintf(&b, "| %s | %.2f | %d |\n", s.Stage, s.Score, len(s.Issues))
	}
	b.WriteString("\n")

	b.WriteString("## Alerts\n\n")
	if len(report.Alerts) == 0 {
		b.WriteString("No alerts.\n\n")
	}
	for _, a := range report.Alerts {
		fmt.Fprintf(&b, "### [%s] %s (%s)\n\n", strings.ToUpper(string(a.Severity)), a.Title, a.RuleID)
		fmt.Fprintf(&b, "%s\n\n", a.Message)
		fmt.Fprintf(&b, "- Recommendation: %s\n", a.Recommendation)
		fmt.Fprintf(&b, "- Facts: %s\n\n", strings.Join(a.FactIDs, ", "))
	}

	b.WriteString("## Temporal Conflicts\n\n")
	if len(report.Conflicts) == 0 {
		b.WriteString("No conflicts.\n\n")
	}
	for _, c := range report.Conflicts {
		fmt.Fprintf(&b, "- **%s** `%s`: %s\n", c.Severity, c.Kind, c.Explanation)
	}
	if len(report.Conflicts) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("## Validation Issues\n\n")
	if len(report.Issues) == 0 {
		b.WriteString("No issues.\n\n")
	} else {
		b.WriteString("| Stage | Severity | Description | Facts |\n|---|---|---|---|\n")
		for _, is := range report.Issues {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", is.Stage, is.Severity, escapePipes(is.Description), strings.Join(is.FactIDs, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Missing Data\n\n")
	if len(report.MissingRequiredFields) == 0 && len(report.MissingExpectedCategories) == 0 {
		b.WriteString("No missing data.\n\n")
	}
	for _, m := range report.MissingRequiredFields {
		fmt.Fprintf(&b, "- `%s` %s %q: %s\n", m.FactID, m.Category, m.Name, strings.Join(m.Fields, ", "))
	}
	if len(report.MissingExpectedCategories) > 0 {
		cats := make([]string, len(report.MissingExpectedCategories))
		for i, c := range report.MissingExpectedCategories {
			cats[i] = string(c)
		}
		fmt.Fprintf(&b, "- Not documented: %s\n", strings.Join(cats, ", "))
	}
	if len(report.MissingRequiredFields) > 0 || len(report.MissingExpectedCategories) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("## Timeline\n\n")
	if a := report.Timeline.Anchor; a != nil && a.Surgery != nil {
		fmt.Fprintf(&b, "Surgery anchor: %s (%s)\n\n", a.Surgery.Format("2006-01-02"), a.SurgerySource)
	}
	writeSummary(&b, report.TimelineSummary)
	b.WriteString("\n")
	b.WriteString("| # | Fact | Category | Date | POD |\n|---:|---|---|---|---:|\n")
	for _, e := range report.Timeline.Events {
		rank, date, pod := "-", "unresolved", "-"
		if e.Rank != model.RankUnknown {
			rank = fmt.Sprint(e.Rank)
		}
		if e.Timestamp != nil {
			date = e.Timestamp.Format("2006-01-02 15:04")
		}
		if e.ResolvedPOD != nil {
			pod = fmt.Sprint(*e.ResolvedPOD)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", rank, escapePipes(e.Name), e.Category, date, pod)
	}

	if r.includeFooter {
		b.WriteString("\n---\n\n")
		b.WriteString("_Generated by neurotrace. Decision support only; findings require clinician review._\n")
	}

	return b.String()
}

// writeSummary prints the timeline summary as a short list.
func writeSummary(w io.Writer, s model.TimelineSummary) {
	fmt.Fprintf(w, "- Events: %d (%d resolved)\n", s.TotalEvents, s.ResolvedEvents)
	if s.Start != nil && s.End != nil {
		fmt.Fprintf(w, "- Date range: %s to %s\n", s.Start.Format("2006-01-02"), s.End.Format("2006-01-02"))
	}
	fmt.Fprintf(w, "- Conflicts: %d (%d high)\n", s.Conflicts, s.HighConflicts)
	if len(s.Categories) > 0 {
		cats := make([]string, 0, len(s.Categories))
		for c := range s.Categories {
			cats = append(cats, string(c))
		}
		sort.Strings(cats)
		parts := make([]string, len(cats))
		for i, c := range cats {
			parts[i] = fmt.Sprintf("%s %d", c, s.Categories[model.EntityCategory(c)])
		}
		fmt.Fprintf(w, "- By category: %s\n", strings.Join(parts, ", "))
	}
}

// WriteTimelineSummary prints the timeline summary for terminal output.
func (r *Renderer) WriteTimelineSummary(w io.Writer, s model.TimelineSummary) {
	writeSummary(w, s)
}

// RenderSummary prints a short terminal summary of a report.
func (r *Renderer) RenderSummary(w io.Writer, report *model.ValidationReport) {
	line := strings.Repeat("═", 60)
	pterm.Fprintln(w, line)
	if report.PatientID != "" {
		pterm.Fprintln(w, fmt.Sprintf("  Patient: %s", report.PatientID))
	}
	pterm.Fprintln(w, fmt.Sprintf("  Report:  %s", report.ReportID))
	pterm.Fprintln(w, line)

	pterm.Fprintln(w, fmt.Sprintf("  Overall score: %s", scoreColor(report.Overall, report.SafeForClinicalUse)))
	pterm.Fprintln(w, fmt.Sprintf("  Safe for clinical use: %s", flag(report.SafeForClinicalUse, false)))
	pterm.Fprintln(w, fmt.Sprintf("  Requires review: %s", flag(report.RequiresReview, true)))
	pterm.Fprintln(w)

	for _, s := range report.Stages {
		pterm.Fprintln(w, fmt.Sprintf("  %-20s %6.2f  (%d issues)", s.Stage, s.Score, len(s.Issues)))
	}
	pterm.Fprintln(w)

	pterm.Fprintln(w, fmt.Sprintf("  Alerts: %d  Conflicts: %d  Issues: %d",
		len(report.Alerts), len(report.Conflicts), len(report.Issues)))
	for _, a := range report.Alerts {
		pterm.Fprintln(w, fmt.Sprintf("    %s %s: %s", severityLabel(a.Severity), a.RuleID, a.Title))
	}
	for _, c := range report.Conflicts {
		pterm.Fprintln(w, fmt.Sprintf("    %s %s: %s", severityLabel(c.Severity), c.Kind, c.Explanation))
	}
	pterm.Fprintln(w, line)
}

func severityLabel(s model.Severity) string {
	label := fmt.Sprintf("[%s]", strings.ToUpper(string(s)))
	switch s {
	case model.SeverityCritical:
		return pterm.Red(label)
	case model.SeverityHigh:
		return pterm.LightMagenta(label)
	case model.SeverityMedium:
		return pterm.Yellow(label)
	default:
		return pterm.Gray(label)
	}
}

func scoreColor(score float64, safe bool) string {
	text := fmt.Sprintf("%.2f/100", score)
	if safe {
		return pterm.Green(text)
	}
	return pterm.Yellow(text)
}

// flag colours a boolean; bad is the value that deserves attention.
func flag(v bool, bad bool) string {
	if v == bad {
		return pterm.Red(yesNo(v))
	}
	return pterm.Green(yesNo(v))
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
