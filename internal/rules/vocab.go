package rules

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ppiankov/neurotrace/internal/model"
)

// Class is a clinical term class used by rule predicates
type Class string

const (
	ClassAnticonvulsant     Class = "anticonvulsant"
	ClassDVTAnticoagulant   Class = "dvt_anticoagulant" // Prophylactic-dose anticoagulants
	ClassMechanicalDVT      Class = "mechanical_dvt"    // SCDs, stockings
	ClassSteroid            Class = "steroid"
	ClassGIProtection       Class = "gi_protection"     // PPI / H2 blocker
	ClassAntithrombotic     Class = "antithrombotic"    // Therapeutic anticoagulants and antiplatelets
	ClassReversalAgent      Class = "reversal_agent"
	ClassHemorrhage         Class = "hemorrhage"
	ClassHypertension       Class = "hypertension"
	ClassBloodPressure      Class = "blood_pressure"
	ClassCoagulationLab     Class = "coagulation_lab"
	ClassCoagulopathy       Class = "coagulopathy"
	ClassSodium             Class = "sodium"
	ClassFollowUp           Class = "follow_up"
	ClassDischarge          Class = "discharge"
	ClassStableExam         Class = "stable_exam"
	ClassCraniotomy         Class = "craniotomy"
	ClassInfratentorial     Class = "infratentorial"
	ClassSupratentorialLobe Class = "supratentorial_lobe"
	ClassTaper              Class = "taper"
)

// Terms lists, per class, the canonical names that match exactly and the
// phrases that match on word boundaries anywhere in a name or span.
type Terms struct {
	Exact   []string
	Phrases []string
}

var defaultTerms = map[Class]Terms{
	ClassAnticonvulsant: {Phrases: []string{
		"levetiracetam", "keppra", "phenytoin", "dilantin", "fosphenytoin", "cerebyx",
		"lacosamide", "vimpat", "valproate", "valproic acid", "brivaracetam",
	}},
	ClassDVTAnticoagulant: {Phrases: []string{
		"enoxaparin", "lovenox", "heparin", "dalteparin", "fragmin", "fondaparinux",
	}},
	ClassMechanicalDVT: {Phrases: []string{
		"scd", "scds", "sequential compression", "compression device", "compression stockings",
		"ted hose", "intermittent pneumatic compression", "ipc",
	}},
	ClassSteroid: {Phrases: []string{
		"dexamethasone", "decadron", "prednisone", "methylprednisolone", "solu-medrol", "hydrocortisone",
	}},
	ClassGIProtection: {Exact: []string{"ppi", "h2 blocker"}, Phrases: []string{
		"pantoprazole", "protonix", "omeprazole", "esomeprazole", "lansoprazole",
		"famotidine", "pepcid", "ranitidine", "proton pump inhibitor",
	}},
	ClassAntithrombotic: {Phrases: []string{
		"warfarin", "coumadin", "apixaban", "eliquis", "rivaroxaban", "xarelto",
		"dabigatran", "pradaxa", "edoxaban", "clopidogrel", "plavix", "aspirin",
		"ticagrelor", "brilinta", "prasugrel",
	}},
	ClassReversalAgent: {Phrases: []string{
		"vitamin k", "phytonadione", "prothrombin complex", "pcc", "kcentra", "andexanet",
		"idarucizumab", "praxbind", "protamine", "platelet transfusion", "desmopressin",
		"ddavp", "fresh frozen plasma", "ffp",
	}},
	ClassHemorrhage: {Phrases: []string{
		"hemorrhage", "haemorrhage", "bleed", "bleeding", "hematoma", "haematoma", "ich", "sah", "sdh",
	}},
	ClassHypertension: {Phrases: []string{"hypertension", "htn", "hypertensive"}},
	ClassBloodPressure: {Exact: []string{"bp", "sbp"}, Phrases: []string{
		"blood pressure", "systolic", "diastolic",
	}},
	ClassCoagulationLab: {Exact: []string{"pt", "ptt", "aptt", "inr"}, Phrases: []string{
		"inr", "ptt", "aptt", "prothrombin time", "platelet", "platelets", "fibrinogen",
	}},
	ClassCoagulopathy: {Phrases: []string{"coagulopathy", "thrombocytopenia", "bleeding disorder"}},
	ClassSodium: {Exact: []string{"na", "na+"}, Phrases: []string{"sodium"}},
	ClassFollowUp: {Phrases: []string{
		"follow-up", "follow up", "followup", "appointment", "clinic visit",
	}},
	ClassDischarge: {Phrases: []string{"discharge", "discharged"}},
	ClassStableExam: {Phrases: []string{
		"stable", "intact", "nonfocal", "non-focal", "at baseline", "neurologically intact",
	}},
	ClassCraniotomy:         {Phrases: []string{"craniotomy", "craniectomy"}},
	ClassInfratentorial:     {Phrases: []string{"cerebellum", "cerebellar", "brainstem", "posterior fossa", "suboccipital"}},
	ClassSupratentorialLobe: {Phrases: []string{"frontal", "parietal", "temporal", "occipital"}},
	ClassTaper:              {Phrases: []string{"taper", "tapering", "wean"}},
}

type termSet struct {
	exact   map[string]bool
	pattern *regexp.Regexp
}

// Vocabulary classifies fact names and text spans into term classes
type Vocabulary struct {
	sets map[Class]*termSet
}

// NewVocabulary compiles a vocabulary from term lists
func NewVocabulary(terms map[Class]Terms) *Vocabulary {
	v := &Vocabulary{sets: make(map[Class]*termSet, len(terms))}

	for class, t := range terms {
		set := &termSet{exact: make(map[string]bool)}
		for _, e := range t.Exact {
			set.exact[strings.ToLower(e)] = true
		}
		if len(t.Phrases) > 0 {
			quoted := make([]string, len(t.Phrases))
			for i, p := range t.Phrases {
				quoted[i] = regexp.QuoteMeta(strings.ToLower(p))
			}
			// longest first so multi-word phrases win over their prefixes
			sort.Slice(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
			set.pattern = regexp.MustCompile(`(^|[^a-z0-9])(` + strings.Join(quoted, "|") + `)($|[^a-z0-9])`)
		}
		v.sets[class] = set
	}

	return v
}

// negationCue marks text that denies or qualifies a finding ("not stable",
// "no longer intact", "worsening").
var negationCue = regexp.MustCompile(`(^|[^a-z0-9])(not|no longer|never|isn't|isnt|wasn't|worsening|worsened|deteriorating|deteriorated|declining|declined)($|[^a-z0-9])`)

// defaultVocabulary is read-only after package initialisation.
var defaultVocabulary = NewVocabulary(defaultTerms)

// Text reports whether text belongs to a class.
func (v *Vocabulary) Text(text string, class Class) bool {
	set, ok := v.sets[class]
	if !ok {
		return false
	}
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return false
	}
	if set.exact[s] {
		return true
	}
	return set.pattern != nil && set.pattern.MatchString(s)
}

// Name reports whether a fact's canonical name belongs to a class.
func (v *Vocabulary) Name(f model.AtomicClinicalFact, class Class) bool {
	return v.Text(f.Name, class)
}

// Mentions reports whether a fact's name or extracted span belongs to a class.
func (v *Vocabulary) Mentions(f model.AtomicClinicalFact, class Class) bool {
	return v.Text(f.Name, class) || v.Text(f.ExtractedText, class)
}

// Affirms reports whether text belongs to a class without a negating cue.
func (v *Vocabulary) Affirms(text string, class Class) bool {
	return v.Text(text, class) && !negationCue.MatchString(strings.ToLower(text))
}

// AffirmedMention is Mentions restricted to name or span text that Affirms the class.
func (v *Vocabulary) AffirmedMention(f model.AtomicClinicalFact, class Class) bool {
	return v.Affirms(f.Name, class) || v.Affirms(f.ExtractedText, class)
}
