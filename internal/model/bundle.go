package model

// PatientBundle is the on-disk input unit: one patient's fact-set snapshot
type PatientBundle struct {
	PatientID string               `json:"patient_id" yaml:"patient_id"`
	Context   PatientContext       `json:"context" yaml:"context"`
	Facts     []AtomicClinicalFact `json:"facts" yaml:"facts"`
}

// EffectiveContext returns the context with the bundle-level patient id filled in.
func (b PatientBundle) EffectiveContext() PatientContext {
	ctx := b.Context
	if ctx.PatientID == "" {
		ctx.PatientID = b.PatientID
	}
	return ctx
}
