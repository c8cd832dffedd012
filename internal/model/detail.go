package model

import (
	"encoding/json"
	"time"
)

// Detail is the category-specific payload of a fact. It is a closed union:
// only the variants declared in this file implement it.
type Detail interface {
	// Category is the entity category this variant belongs to.
	Category() EntityCategory
	// MissingFields lists required fields that are absent.
	MissingFields() []string
	isDetail()
}

// MedicationDetail describes dosing and course of a medication.
type MedicationDetail struct {
	DoseValue     *float64   `json:"dose_value,omitempty"`
	DoseUnit      string     `json:"dose_unit,omitempty"`
	Route         string     `json:"route,omitempty"`
	Frequency     string     `json:"frequency,omitempty"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	DurationDays  *int       `json:"duration_days,omitempty"`
	TaperSchedule string     `json:"taper_schedule,omitempty"`
	Indication    string     `json:"indication,omitempty"`
}

func (MedicationDetail) Category() EntityCategory { return CategoryMedication }
func (MedicationDetail) isDetail()                {}

func (d MedicationDetail) MissingFields() []string {
	var missing []string
	if d.DoseValue == nil {
		missing = append(missing, "dose_value")
	}
	if d.DoseUnit == "" {
		missing = append(missing, "dose_unit")
	}
	if d.Frequency == "" {
		missing = append(missing, "frequency")
	}
	return missing
}

func (d *MedicationDetail) UnmarshalJSON(data []byte) error {
	type plain MedicationDetail
	var wire struct {
		plain
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	start, err := ParseClinicalTime(wire.StartDate)
	if err != nil {
		return err
	}
	end, err := ParseClinicalTime(wire.EndDate)
	if err != nil {
		return err
	}
	*d = MedicationDetail(wire.plain)
	d.StartDate = start
	d.EndDate = end
	return nil
}

// LabDetail is a laboratory measurement.
type LabDetail struct {
	Value         *float64 `json:"value,omitempty"`
	Unit          string   `json:"unit,omitempty"`
	ReferenceLow  *float64 `json:"reference_low,omitempty"`
	ReferenceHigh *float64 `json:"reference_high,omitempty"`
}

func (LabDetail) Category() EntityCategory { return CategoryLabValue }
func (LabDetail) isDetail()                {}

func (d LabDetail) MissingFields() []string {
	var missing []string
	if d.Value == nil {
		missing = append(missing, "value")
	}
	if d.Unit == "" {
		missing = append(missing, "unit")
	}
	return missing
}

// VitalDetail is a vital-sign measurement.
type VitalDetail struct {
	Value *float64 `json:"value,omitempty"`
	Unit  string   `json:"unit,omitempty"`
}

func (VitalDetail) Category() EntityCategory { return CategoryVitalSign }
func (VitalDetail) isDetail()                {}

func (d VitalDetail) MissingFields() []string {
	var missing []string
	if d.Value == nil {
		missing = append(missing, "value")
	}
	if d.Unit == "" {
		missing = append(missing, "unit")
	}
	return missing
}

// ImagingDetail summarises an imaging study finding.
type ImagingDetail struct {
	Modality       string   `json:"modality,omitempty"`
	Hemorrhage     *bool    `json:"hemorrhage,omitempty"`
	Edema          *bool    `json:"edema,omitempty"`
	MidlineShiftMM *float64 `json:"midline_shift_mm,omitempty"`
	Description    string   `json:"description,omitempty"`
}

func (ImagingDetail) Category() EntityCategory { return CategoryImagingFinding }
func (ImagingDetail) isDetail()                {}

func (d ImagingDetail) MissingFields() []string {
	if d.Modality == "" {
		return []string{"modality"}
	}
	return nil
}

// ProcedureDetail describes a surgical procedure.
type ProcedureDetail struct {
	Approach        string     `json:"approach,omitempty"`
	Laterality      Laterality `json:"laterality,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
}

func (ProcedureDetail) Category() EntityCategory { return CategoryProcedure }
func (ProcedureDetail) isDetail()                {}

// MissingFields is empty: the required procedure field is its temporal hint,
// which lives on the fact (see RequiredDetailFields).
func (ProcedureDetail) MissingFields() []string { return nil }

// ExamDetail is a structured neurological exam.
type ExamDetail struct {
	GCSEye       *int   `json:"gcs_eye,omitempty"`
	GCSVerbal    *int   `json:"gcs_verbal,omitempty"`
	GCSMotor     *int   `json:"gcs_motor,omitempty"`
	MentalStatus string `json:"mental_status,omitempty"`
	Stable       *bool  `json:"stable,omitempty"`
	FocalDeficit *bool  `json:"focal_deficit,omitempty"`
}

func (ExamDetail) Category() EntityCategory { return CategoryPhysicalExam }
func (ExamDetail) isDetail()                {}
func (ExamDetail) MissingFields() []string  { return nil }

// GCSTotal returns the Glasgow Coma Scale total when all three components are known.
func (d ExamDetail) GCSTotal() (int, bool) {
	if d.GCSEye == nil || d.GCSVerbal == nil || d.GCSMotor == nil {
		return 0, false
	}
	return *d.GCSEye + *d.GCSVerbal + *d.GCSMotor, true
}

// RequiredDetailFields lists the missing required detail fields of a fact.
// The second return is false when the fact's category has no required details.
func RequiredDetailFields(f AtomicClinicalFact) ([]string, bool) {
	switch f.Category {
	case CategoryMedication:
		d, ok := f.Detail.(MedicationDetail)
		if !ok {
			return MedicationDetail{}.MissingFields(), true
		}
		return d.MissingFields(), true
	case CategoryLabValue:
		d, ok := f.Detail.(LabDetail)
		if !ok {
			return LabDetail{}.MissingFields(), true
		}
		return d.MissingFields(), true
	case CategoryVitalSign:
		d, ok := f.Detail.(VitalDetail)
		if !ok {
			return VitalDetail{}.MissingFields(), true
		}
		return d.MissingFields(), true
	case CategoryImagingFinding:
		d, ok := f.Detail.(ImagingDetail)
		if !ok {
			return ImagingDetail{}.MissingFields(), true
		}
		return d.MissingFields(), true
	case CategoryProcedure:
		if f.Temporal.Hint().Kind == HintUnresolved {
			return []string{"temporal"}, true
		}
		return nil, true
	default:
		return nil, false
	}
}

// Value returns the numeric measurement carried by a lab or vital detail.
func (f AtomicClinicalFact) Value() (float64, bool) {
	switch d := f.Detail.(type) {
	case LabDetail:
		if d.Value != nil {
			return *d.Value, true
		}
	case VitalDetail:
		if d.Value != nil {
			return *d.Value, true
		}
	}
	return 0, false
}

// Medication returns the medication detail, if any.
func (f AtomicClinicalFact) Medication() (MedicationDetail, bool) {
	d, ok := f.Detail.(MedicationDetail)
	return d, ok
}

// Imaging returns the imaging detail, if any.
func (f AtomicClinicalFact) Imaging() (ImagingDetail, bool) {
	d, ok := f.Detail.(ImagingDetail)
	return d, ok
}

// Exam returns the exam detail, if any.
func (f AtomicClinicalFact) Exam() (ExamDetail, bool) {
	d, ok := f.Detail.(ExamDetail)
	return d, ok
}

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 { return &v }

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool { return &v }
