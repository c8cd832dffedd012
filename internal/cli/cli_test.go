package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/neurotrace/internal/errors"
	"github.com/ppiankov/neurotrace/internal/model"
	"github.com/ppiankov/neurotrace/internal/rules"
)

func newTestViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetEnvPrefix("NEUROTRACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	require.NoError(t, registerDefaults(v, model.DefaultConfig()))
	return v
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(newTestViper(t))
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConfig(), cfg)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("NEUROTRACE_VALIDATION_PASS_THRESHOLD", "90")
	t.Setenv("NEUROTRACE_RULES_DVT_PROPHYLAXIS", "false")

	cfg, err := loadConfig(newTestViper(t))
	require.NoError(t, err)
	assert.Equal(t, 90.0, cfg.Validation.PassThreshold)
	assert.False(t, cfg.Rules.DVTProphylaxis)
	assert.True(t, cfg.Rules.SeizureProphylaxis)
	assert.Len(t, cfg.Validation.ImplausibleChange, 3)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("temporal:\n  pod_ceiling: 30\nworkers:\n  concurrency: 2\n"), 0644))

	v := newTestViper(t)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Temporal.PODCeiling)
	assert.Equal(t, 2, cfg.Workers.Concurrency)
	assert.Equal(t, 365, cfg.Temporal.MaxStateDurationDays)
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Setenv("NEUROTRACE_WORKERS_CONCURRENCY", "0")

	_, err := loadConfig(newTestViper(t))
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "valid.yaml")
	require.NoError(t, os.WriteFile(valid, []byte("temporal:\n  pod_ceiling: 30\n"), 0644))
	malformed := filepath.Join(dir, "malformed.yaml")
	require.NoError(t, os.WriteFile(malformed, []byte("temporal:\n  pod_ceiling: [oops\n"), 0644))
	home := filepath.Join(dir, "home")
	require.NoError(t, os.MkdirAll(home, 0755))
	homeMalformed := filepath.Join(dir, "home-malformed")
	require.NoError(t, os.MkdirAll(homeMalformed, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(homeMalformed, "config.yaml"), []byte("rules: {dvt_prophylaxis: [\n"), 0644))

	tests := []struct {
		name    string
		file    string
		search  string
		wantErr bool
	}{
		{"explicit valid file", valid, "", false},
		{"explicit malformed file", malformed, "", true},
		{"explicit missing file", filepath.Join(dir, "absent.yaml"), "", true},
		{"default location absent", "", home, false},
		{"default location malformed", "", homeMalformed, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestViper(t)
			if tt.file != "" {
				v.SetConfigFile(tt.file)
			} else {
				v.AddConfigPath(tt.search)
				v.SetConfigType("yaml")
				v.SetConfigName("config")
			}

			err := readConfig(v, tt.file)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsConfigError(err))
			assert.NotEmpty(t, errors.FlattenHints(err))
		})
	}
}

func TestMalformedConfigStopsCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("temporal:\n  pod_ceiling: [oops\n"), 0644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--config", path, "version"})
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		cfgFile = ""
		configErr = nil
	}()

	err := Execute()
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
	assert.Contains(t, err.Error(), path)
	assert.Empty(t, out.String())
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".neurotrace", "config.yaml")
	require.NoError(t, writeDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Neurotrace Configuration File")
	assert.Contains(t, string(data), "pass_threshold: 85")

	// The written file round-trips to the defaults
	v := newTestViper(t)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConfig(), cfg)

	err = writeDefaultConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestShowConfig(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, showConfig(&buf, model.DefaultConfig()))
	assert.Contains(t, buf.String(), "Current Configuration")
	assert.Contains(t, buf.String(), "seizure_prophylaxis: true")
	assert.Contains(t, buf.String(), "~/.neurotrace/config.yaml")
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"patient-42", "patient-42"},
		{"ward 3/bed:7", "ward-3_bed_7"},
		{"../etc", "_etc"},
		{"   ", "patient"},
		{"..", "patient"},
		{strings.Repeat("x", 150), strings.Repeat("x", 100)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeFilename(tt.in))
		})
	}
}

func TestUniqueName(t *testing.T) {
	seen := make(map[string]int)
	assert.Equal(t, "p1", uniqueName(seen, "p1"))
	assert.Equal(t, "p2", uniqueName(seen, "p2"))
	assert.Equal(t, "p1-2", uniqueName(seen, "p1"))
	assert.Equal(t, "p1-3", uniqueName(seen, "p1"))
}

func TestBatchMark(t *testing.T) {
	assert.Equal(t, "✓", batchMark(&model.ValidationReport{SafeForClinicalUse: true}))
	assert.Equal(t, "!", batchMark(&model.ValidationReport{SafeForClinicalUse: true, RequiresReview: true}))
	assert.Equal(t, "✗", batchMark(&model.ValidationReport{RequiresReview: true}))
}

func TestPrintCatalogue(t *testing.T) {
	pterm.DisableColor()
	defer pterm.EnableColor()

	enabled := model.DefaultConfig().Rules
	enabled.DVTProphylaxis = false

	var buf bytes.Buffer
	require.NoError(t, printCatalogue(&buf, rules.Catalogue(), enabled))

	lines := strings.Split(buf.String(), "\n")
	var dvt, seizure string
	for _, l := range lines {
		switch {
		case strings.Contains(l, "DVT_001"):
			dvt = l
		case strings.Contains(l, "SEIZURE_001"):
			seizure = l
		}
	}
	assert.Contains(t, dvt, " no ")
	assert.Contains(t, seizure, " yes ")
	assert.Contains(t, buf.String(), "DISCHARGE_002")
}

func TestPrintAlerts(t *testing.T) {
	pterm.DisableColor()
	defer pterm.EnableColor()

	var buf bytes.Buffer
	printAlerts(&buf, nil)
	assert.Contains(t, buf.String(), "No clinical alerts")

	buf.Reset()
	printAlerts(&buf, []model.ClinicalAlert{{
		Severity:       model.SeverityCritical,
		RuleID:         "SODIUM_002",
		Title:          "Rapid sodium change",
		Message:        "Sodium changed by 12 mmol/L",
		Recommendation: "Check osmotic demyelination risk",
		FactIDs:        []string{"na1", "na2"},
	}})
	out := buf.String()
	assert.Contains(t, out, "[CRITICAL] SODIUM_002 Rapid sodium change")
	assert.Contains(t, out, "facts: na1, na2")
	assert.Contains(t, out, "1 alert(s)")
}

func TestPrintTimeline(t *testing.T) {
	pterm.DisableColor()
	defer pterm.EnableColor()

	surgery := time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)
	pod := 1
	tl := model.Timeline{
		Anchor: &model.AnchorDate{Surgery: &surgery, SurgerySource: model.AnchorFromContext},
		Events: []model.TemporalEvent{
			{FactID: "proc", Category: model.CategoryProcedure, Name: "craniotomy", Timestamp: &surgery, SourceLabel: "absolute", Rank: 0},
			{FactID: "note", Category: model.CategorySymptom, Name: "headache", SourceLabel: "none", ResolvedPOD: &pod, Rank: model.RankUnknown},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, printTimeline(&buf, tl, tl.Summary(nil), nil))
	out := buf.String()
	assert.Contains(t, out, "Surgery anchor:   2024-03-05 08:00 (context)")
	assert.Contains(t, out, "- Events: 2 (1 resolved)")
	assert.Contains(t, out, "- By category: procedure 1, symptom 1")
	assert.Contains(t, out, "craniotomy")
	assert.Contains(t, out, "unresolved")
	assert.Contains(t, out, "No temporal conflicts")

	buf.Reset()
	conflicts := []model.Conflict{{
		Kind: model.ConflictImpossibleSequence, Severity: model.SeverityHigh, Explanation: "procedure before admission",
	}}
	require.NoError(t, printTimeline(&buf, model.Timeline{}, model.Timeline{}.Summary(conflicts), conflicts))
	out = buf.String()
	assert.Contains(t, out, "No anchor date could be inferred")
	assert.Contains(t, out, "✗ [high] impossible_sequence: procedure before admission")
	assert.Contains(t, out, "- Conflicts: 1 (1 high)")
}

func TestWindowTimeline(t *testing.T) {
	stamp := func(s string) *time.Time {
		ts, err := model.ParseClinicalTime(s)
		require.NoError(t, err)
		return ts
	}
	tl := model.Timeline{Events: []model.TemporalEvent{
		{FactID: "adm", Timestamp: stamp("2024-03-04T10:00")},
		{FactID: "proc", Timestamp: stamp("2024-03-05T08:00")},
		{FactID: "mri", Timestamp: stamp("2024-03-06T23:30")},
		{FactID: "note", Rank: model.RankUnknown},
	}}

	tests := []struct {
		name     string
		from, to string
		want     []string
	}{
		{"no window", "", "", []string{"adm", "proc", "mri", "note"}},
		{"from only", "2024-03-05", "", []string{"proc", "mri"}},
		{"bare date upper bound covers the day", "", "2024-03-06", []string{"adm", "proc", "mri"}},
		{"exact upper bound", "", "2024-03-05T08:00", []string{"adm", "proc"}},
		{"single day", "2024-03-05", "2024-03-05", []string{"proc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := windowTimeline(tl, tt.from, tt.to)
			require.NoError(t, err)
			var ids []string
			for _, e := range got.Events {
				ids = append(ids, e.FactID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	_, err := windowTimeline(tl, "last week", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--from")
}

func TestPrintRelated(t *testing.T) {
	var buf bytes.Buffer
	printRelated(&buf, "na1", 2, nil)
	assert.Contains(t, buf.String(), "No resolved events within 2 days of na1")

	buf.Reset()
	printRelated(&buf, "na1", 2, []model.RelatedEvent{
		{Event: model.TemporalEvent{FactID: "na2", Category: model.CategoryLabValue, Name: "sodium"}, Distance: 6 * time.Hour},
		{Event: model.TemporalEvent{FactID: "mri", Category: model.CategoryImagingFinding, Name: "MRI"}, Distance: 36 * time.Hour},
	})
	out := buf.String()
	assert.Contains(t, out, "Events within 2 days of na1:")
	assert.Contains(t, out, "6.0h")
	assert.Contains(t, out, "1.5d")
}
