package model

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/ppiankov/neurotrace/internal/errors"
)

// EntityCategory classifies an atomic clinical fact
type EntityCategory string

const (
	CategoryDiagnosis      EntityCategory = "diagnosis"
	CategoryProcedure      EntityCategory = "procedure"
	CategoryMedication     EntityCategory = "medication"
	CategoryLabValue       EntityCategory = "lab_value"
	CategoryVitalSign      EntityCategory = "vital_sign"
	CategoryPhysicalExam   EntityCategory = "physical_exam"
	CategorySymptom        EntityCategory = "symptom"
	CategoryImagingFinding EntityCategory = "imaging_finding"
	CategoryAllergy        EntityCategory = "allergy"
	CategoryFamilyHistory  EntityCategory = "family_history"
	CategoryComplication   EntityCategory = "complication"
	CategoryAdmission      EntityCategory = "admission"
	CategoryDischarge      EntityCategory = "discharge"
	CategoryFollowUp       EntityCategory = "follow_up"
)

// Categories lists every known category in a stable order.
var Categories = []EntityCategory{
	CategoryDiagnosis, CategoryProcedure, CategoryMedication, CategoryLabValue,
	CategoryVitalSign, CategoryPhysicalExam, CategorySymptom, CategoryImagingFinding,
	CategoryAllergy, CategoryFamilyHistory, CategoryComplication, CategoryAdmission,
	CategoryDischarge, CategoryFollowUp,
}

// Valid reports whether c is a known category.
func (c EntityCategory) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Laterality of an anatomical finding
type Laterality string

const (
	LateralityLeft      Laterality = "left"
	LateralityRight     Laterality = "right"
	LateralityBilateral Laterality = "bilateral"
	LateralityMidline   Laterality = "midline"
)

// Anatomy locates a finding or procedure
type Anatomy struct {
	Laterality  Laterality `json:"laterality,omitempty"`   // left, right, bilateral, midline
	BrainRegion string     `json:"brain_region,omitempty"` // e.g. "frontal", "cerebellum"
	Structure   string     `json:"structure,omitempty"`    // e.g. "middle cerebral artery"
	SizeMM      *float64   `json:"size_mm,omitempty"`
}

// Provenance tags which extractor produced a fact
type Provenance string

const (
	ProvenanceNER    Provenance = "ner"
	ProvenanceLLM    Provenance = "llm"
	ProvenanceHybrid Provenance = "hybrid"
	ProvenanceRule   Provenance = "rule"
)

// AtomicClinicalFact is one extracted clinical fact. Facts are immutable inputs
// to the resolver, rule engine and validator.
type AtomicClinicalFact struct {
	ID            string           `json:"id"`
	Category      EntityCategory   `json:"category"`
	Name          string           `json:"name"`                     // Normalized entity name
	ExtractedText string           `json:"extracted_text,omitempty"` // Original surface text
	Confidence    float64          `json:"confidence"`               // Extraction confidence [0,1]
	Provenance    Provenance       `json:"provenance,omitempty"`     // ner, llm, hybrid, rule
	Anatomy       Anatomy          `json:"anatomy,omitempty"`
	Detail        Detail           `json:"-"`                        // Category-specific payload
	Temporal      *TemporalContext `json:"temporal,omitempty"`
	Negated       bool             `json:"negated,omitempty"`        // "no evidence of ..."
	Historical    bool             `json:"historical,omitempty"`     // Prior to this encounter
	FamilyHistory bool             `json:"family_history,omitempty"` // Refers to a relative
}

// Present reports whether the fact asserts something about this patient now.
func (f AtomicClinicalFact) Present() bool {
	return !f.Negated && !f.FamilyHistory
}

// InEncounter reports whether the fact describes this encounter (not historical,
// negated or about a relative).
func (f AtomicClinicalFact) InEncounter() bool {
	return f.Present() && !f.Historical
}

// MarshalJSON flattens Detail into its wire key.
func (f AtomicClinicalFact) MarshalJSON() ([]byte, error) {
	type plain AtomicClinicalFact
	wire := struct {
		plain
		Medication *MedicationDetail `json:"medication,omitempty"`
		Lab        *LabDetail        `json:"lab,omitempty"`
		Vital      *VitalDetail      `json:"vital,omitempty"`
		Imaging    *ImagingDetail    `json:"imaging,omitempty"`
		Procedure  *ProcedureDetail  `json:"procedure,omitempty"`
		Exam       *ExamDetail       `json:"exam,omitempty"`
	}{plain: plain(f)}
	switch d := f.Detail.(type) {
	case MedicationDetail:
		wire.Medication = &d
	case LabDetail:
		wire.Lab = &d
	case VitalDetail:
		wire.Vital = &d
	case ImagingDetail:
		wire.Imaging = &d
	case ProcedureDetail:
		wire.Procedure = &d
	case ExamDetail:
		wire.Exam = &d
	}
	return json.Marshal(wire)
}

// UnmarshalJSON accepts at most one detail key per fact.
func (f *AtomicClinicalFact) UnmarshalJSON(data []byte) error {
	type plain AtomicClinicalFact
	var wire struct {
		plain
		Medication *MedicationDetail `json:"medication"`
		Lab        *LabDetail        `json:"lab"`
		Vital      *VitalDetail      `json:"vital"`
		Imaging    *ImagingDetail    `json:"imaging"`
		Procedure  *ProcedureDetail  `json:"procedure"`
		Exam       *ExamDetail       `json:"exam"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*f = AtomicClinicalFact(wire.plain)

	var details []Detail
	if wire.Medication != nil {
		details = append(details, *wire.Medication)
	}
	if wire.Lab != nil {
		details = append(details, *wire.Lab)
	}
	if wire.Vital != nil {
		details = append(details, *wire.Vital)
	}
	if wire.Imaging != nil {
		details = append(details, *wire.Imaging)
	}
	if wire.Procedure != nil {
		details = append(details, *wire.Procedure)
	}
	if wire.Exam != nil {
		details = append(details, *wire.Exam)
	}
	if len(details) > 1 {
		return errors.NewMalformedFactError(f.ID, "carries %d detail payloads, want at most one", len(details))
	}
	if len(details) == 1 {
		f.Detail = details[0]
	}
	return nil
}

// Validate checks a single fact for structural problems.
func (f AtomicClinicalFact) Validate() error {
	if f.ID == "" {
		return errors.Wrap(errors.ErrMalformedFact, "fact without id")
	}
	if !f.Category.Valid() {
		return errors.NewMalformedFactError(f.ID, "unknown category %q", f.Category)
	}
	if math.IsNaN(f.Confidence) || f.Confidence < 0 || f.Confidence > 1 {
		return errors.NewMalformedFactError(f.ID, "confidence %v outside [0,1]", f.Confidence)
	}
	if f.Detail != nil && f.Detail.Category() != f.Category {
		return errors.NewMalformedFactError(f.ID, "%s detail on a %s fact", f.Detail.Category(), f.Category)
	}
	if v, ok := f.Value(); ok && (math.IsNaN(v) || math.IsInf(v, 0)) {
		return errors.NewMalformedFactError(f.ID, "non-finite measurement")
	}
	if med, ok := f.Medication(); ok && med.DoseValue != nil {
		if math.IsNaN(*med.DoseValue) || math.IsInf(*med.DoseValue, 0) {
			return errors.NewMalformedFactError(f.ID, "non-finite dose")
		}
	}
	return nil
}

// ValidateFacts checks every fact and rejects duplicate ids.
func ValidateFacts(facts []AtomicClinicalFact) error {
	seen := make(map[string]bool, len(facts))
	for _, f := range facts {
		if err := f.Validate(); err != nil {
			return err
		}
		if seen[f.ID] {
			return errors.NewMalformedFactError(f.ID, "duplicate id")
		}
		seen[f.ID] = true
	}
	return nil
}

// SortedByID returns a copy of facts ordered by id.
func SortedByID(facts []AtomicClinicalFact) []AtomicClinicalFact {
	out := make([]AtomicClinicalFact, len(facts))
	copy(out, facts)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FactIndex maps ids to facts.
func FactIndex(facts []AtomicClinicalFact) map[string]AtomicClinicalFact {
	idx := make(map[string]AtomicClinicalFact, len(facts))
	for _, f := range facts {
		idx[f.ID] = f
	}
	return idx
}

func (f AtomicClinicalFact) String() string {
	return fmt.Sprintf("%s[%s:%s]", f.ID, f.Category, f.Name)
}
