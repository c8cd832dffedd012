package model

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// PatientContext is optional encounter-level information supplied with a fact set
type PatientContext struct {
	PatientID     string            `json:"patient_id,omitempty"`
	POD           *int              `json:"pod,omitempty"`            // Current post-operative day
	SurgeryDate   *time.Time        `json:"surgery_date,omitempty"`   // Known index procedure date
	AdmissionDate *time.Time        `json:"admission_date,omitempty"` // Known admission date
	Indication    string            `json:"indication,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// ContextFromMap builds a PatientContext from the loose key-value form used by
// upstream extractors, e.g. {"pod": 5, "indication": "craniotomy"}.
// Unknown keys are kept in Extra.
func ContextFromMap(m map[string]interface{}) (PatientContext, error) {
	var ctx PatientContext
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := m[k]
		if v == nil {
			continue
		}
		switch k {
		case "patient_id":
			ctx.PatientID = fmt.Sprint(v)
		case "pod":
			pod, err := toInt(v)
			if err != nil {
				return ctx, fmt.Errorf("context pod: %w", err)
			}
			ctx.POD = &pod
		case "surgery_date":
			t, err := ParseClinicalTime(fmt.Sprint(v))
			if err != nil {
				return ctx, fmt.Errorf("context surgery_date: %w", err)
			}
			ctx.SurgeryDate = t
		case "admission_date":
			t, err := ParseClinicalTime(fmt.Sprint(v))
			if err != nil {
				return ctx, fmt.Errorf("context admission_date: %w", err)
			}
			ctx.AdmissionDate = t
		case "indication":
			ctx.Indication = fmt.Sprint(v)
		default:
			if ctx.Extra == nil {
				ctx.Extra = make(map[string]string)
			}
			ctx.Extra[k] = fmt.Sprint(v)
		}
	}
	return ctx, nil
}

func (c *PatientContext) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	// "extra" arrives as an object; flatten it before ContextFromMap sees it.
	extra, _ := m["extra"].(map[string]interface{})
	delete(m, "extra")
	for k, v := range extra {
		if _, exists := m[k]; !exists {
			m[k] = v
		}
	}
	ctx, err := ContextFromMap(m)
	if err != nil {
		return err
	}
	*c = ctx
	return nil
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not a whole number", n)
		}
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("unsupported value %v (%T)", v, v)
	}
}
