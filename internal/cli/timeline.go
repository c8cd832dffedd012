package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ppiankov/neurotrace/internal/errors"
	"github.com/ppiankov/neurotrace/internal/model"
	"github.com/ppiankov/neurotrace/internal/pipeline"
)

var (
	timelineJSON  bool
	timelineFrom  string
	timelineTo    string
	relatedFact   string
	relatedWithin int
)

// timelineView is the JSON shape of the timeline command
type timelineView struct {
	PatientID string                `json:"patient_id,omitempty"`
	Summary   model.TimelineSummary `json:"summary"`
	Timeline  model.Timeline        `json:"timeline"`
	Conflicts []model.Conflict      `json:"conflicts"`
	Related   []model.RelatedEvent  `json:"related,omitempty"`
}

// timelineCmd represents the timeline command
var timelineCmd = &cobra.Command{
	Use:   "timeline <bundle>",
	Short: "Show the resolved patient timeline and temporal conflicts",
	Long: `Timeline resolves every fact in a bundle to an absolute time where
possible, shows the inferred surgery and admission anchors, and lists the
temporal conflicts found on the timeline.

Example:
  neurotrace timeline patient.json
  neurotrace timeline patient.json --from 2024-03-05 --to 2024-03-08
  neurotrace timeline patient.json --related na1 --within 2
  neurotrace timeline patient.yaml --json`,
	Args: cobra.ExactArgs(1),
	RunE: runTimeline,
}

func init() {
	rootCmd.AddCommand(timelineCmd)
	timelineCmd.Flags().BoolVar(&timelineJSON, "json", false, "print the timeline as JSON")
	timelineCmd.Flags().StringVar(&timelineFrom, "from", "", "only show events at or after this date")
	timelineCmd.Flags().StringVar(&timelineTo, "to", "", "only show events at or before this date (a bare date covers the whole day)")
	timelineCmd.Flags().StringVar(&relatedFact, "related", "", "list events near this fact id")
	timelineCmd.Flags().IntVar(&relatedWithin, "within", 7, "days considered near for --related")
}

func runTimeline(cmd *cobra.Command, args []string) error {
	engine, err := newEngine()
	if err != nil {
		return err
	}
	bundle, err := loadBundle(args[0])
	if err != nil {
		return err
	}

	pctx := bundle.EffectiveContext()
	tl, err := engine.ResolveTimeline(bundle.Facts, pctx)
	if err != nil {
		return fmt.Errorf("resolve failed: %w", err)
	}
	conflicts := engine.DetectConflicts(tl.Events, tl.Anchor)
	summary := tl.Summary(conflicts)

	var related []model.RelatedEvent
	if relatedFact != "" {
		if _, ok := tl.Event(relatedFact); !ok {
			return errors.WithHint(errors.Newf("unknown fact %q", relatedFact), "use a fact id from the timeline table")
		}
		related = tl.Related(relatedFact, relatedWithin)
	}

	shown, err := windowTimeline(tl, timelineFrom, timelineTo)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if timelineJSON {
		return pipeline.NewRenderer(false).WriteJSON(out, timelineView{
			PatientID: pctx.PatientID,
			Summary:   summary,
			Timeline:  shown,
			Conflicts: conflicts,
			Related:   related,
		})
	}
	if err := printTimeline(out, shown, summary, conflicts); err != nil {
		return err
	}
	if relatedFact != "" {
		printRelated(out, relatedFact, relatedWithin, related)
	}
	return nil
}

// windowTimeline keeps the events between from and to. Either bound may be
// empty; a bare date as the upper bound includes that whole day.
func windowTimeline(tl model.Timeline, from, to string) (model.Timeline, error) {
	if from == "" && to == "" {
		return tl, nil
	}
	lo, hi := time.Time{}, time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
	if from != "" {
		t, err := model.ParseClinicalTime(from)
		if err != nil {
			return tl, errors.WithHint(errors.Wrap(err, "--from"), "use YYYY-MM-DD or RFC 3339")
		}
		lo = *t
	}
	if to != "" {
		t, err := model.ParseClinicalTime(to)
		if err != nil {
			return tl, errors.WithHint(errors.Wrap(err, "--to"), "use YYYY-MM-DD or RFC 3339")
		}
		hi = *t
		if len(strings.TrimSpace(to)) == len("2006-01-02") {
			hi = model.AddDays(hi, 1).Add(-time.Nanosecond)
		}
	}
	return model.Timeline{Events: tl.Between(lo, hi), Anchor: tl.Anchor}, nil
}

func printRelated(w io.Writer, factID string, within int, related []model.RelatedEvent) {
	fmt.Fprintln(w)
	if len(related) == 0 {
		fmt.Fprintf(w, "No resolved events within %d days of %s\n", within, factID)
		return
	}
	fmt.Fprintf(w, "Events within %d days of %s:\n", within, factID)
	for _, r := range related {
		fmt.Fprintf(w, "  %-12s %-16s %-28s %s\n", r.Event.FactID, r.Event.Category, r.Event.Name, formatDistance(r.Distance))
	}
}

func formatDistance(d time.Duration) string {
	if d < 24*time.Hour {
		return fmt.Sprintf("%.1fh", d.Hours())
	}
	return fmt.Sprintf("%.1fd", d.Hours()/24)
}

func printTimeline(w io.Writer, tl model.Timeline, summary model.TimelineSummary, conflicts []model.Conflict) error {
	if a := tl.Anchor; a != nil {
		if a.Surgery != nil {
			label := string(a.SurgerySource)
			if a.Provisional {
				label += ", provisional"
			}
			fmt.Fprintf(w, "Surgery anchor:   %s (%s)\n", a.Surgery.Format("2006-01-02 15:04"), label)
		}
		if a.Admission != nil {
			fmt.Fprintf(w, "Admission anchor: %s (%s)\n", a.Admission.Format("2006-01-02 15:04"), a.AdmissionSource)
		}
	} else {
		fmt.Fprintln(w, "No anchor date could be inferred")
	}
	fmt.Fprintln(w)
	pipeline.NewRenderer(false).WriteTimelineSummary(w, summary)
	fmt.Fprintln(w)

	data := pterm.TableData{{"#", "Fact", "Category", "Name", "Time", "Source", "POD"}}
	for _, e := range tl.Events {
		rank, ts, pod := "-", "unresolved", "-"
		if e.Rank != model.RankUnknown {
			rank = strconv.Itoa(e.Rank)
		}
		if e.Timestamp != nil {
			ts = e.Timestamp.Format("2006-01-02 15:04")
		}
		if e.ResolvedPOD != nil {
			pod = strconv.Itoa(*e.ResolvedPOD)
		}
		data = append(data, []string{rank, e.FactID, string(e.Category), e.Name, ts, e.SourceLabel, pod})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, table)
	fmt.Fprintln(w)

	if len(conflicts) == 0 {
		fmt.Fprintln(w, pterm.Green("✓ No temporal conflicts"))
		return nil
	}
	fmt.Fprintf(w, "%d temporal conflict(s):\n", len(conflicts))
	for _, c := range conflicts {
		fmt.Fprintf(w, "  ✗ [%s] %s: %s\n", c.Severity, c.Kind, c.Explanation)
	}
	return nil
}
