package clinical

import (
	"fmt"
	"strings"
)

// Tags from the closed symptom vocabulary.
const (
	TagAnemia         = "anemia"
	TagPneumonia      = "pneumonia"
	TagAsthma         = "asthma"
	TagDepression     = "depression"
	TagAnxiety        = "anxiety"
	TagDiabetes       = "diabetes"
	TagHypertension   = "hypertension"
	TagHeartDisease   = "heart disease"
	TagKidneyDisease  = "kidney disease"
	TagSubstanceAbuse = "substance abuse"
)

// FallbackSymptoms is returned when no rule fires, so retrieval still has a
// query. Generic tags rarely clear the evidence floor.
var FallbackSymptoms = []string{"length of stay", "hospital admission", "medical care"}

// Thresholds for the lab-value rules.
const (
	severeHematocrit  = 8.0
	maxRespiration    = 20.0
	maxNeutrophils    = 70.0
	minSodium         = 135.0
	maxCreatinine     = 1.2
	maxBloodUreaNitro = 25.0
)

// diagnosisKeyword is one category of the free-text diagnosis table. Order
// matters: categories are scanned in this order and the first keyword that
// matches within a category wins.
type diagnosisKeyword struct {
	tag      string
	label    string
	keywords []string
}

var diagnosisKeywords = []diagnosisKeyword{
	{TagAnemia, "Anemia", []string{"anemia", "anemic", "hemoglobin", "hematocrit", "iron deficiency", "low blood count"}},
	{TagPneumonia, "Pneumonia", []string{"pneumonia", "lung infection", "respiratory infection", "chest infection"}},
	{TagAsthma, "Asthma", []string{"asthma", "breathing problems", "respiratory issues", "airway obstruction"}},
	{TagDepression, "Depression", []string{"depression", "depressive", "mental health", "psychiatric", "mood disorder"}},
	{TagAnxiety, "Anxiety", []string{"anxiety", "anxious", "stress", "panic", "worry"}},
	{TagDiabetes, "Diabetes", []string{"diabetes", "diabetic", "blood sugar", "glucose", "insulin"}},
	{TagHypertension, "Hypertension", []string{"hypertension", "high blood pressure", "blood pressure"}},
	{TagHeartDisease, "Heart Disease", []string{"heart disease", "cardiac", "cardiovascular", "heart failure"}},
	{TagKidneyDisease, "Kidney Disease", []string{"kidney disease", "renal", "nephrology", "dialysis"}},
	{TagSubstanceAbuse, "Substance Abuse", []string{"substance abuse", "drug abuse", "addiction", "substance use disorder"}},
}

// Assessment is the output of Infer.
type Assessment struct {
	Symptoms    []string `json:"symptoms"`
	Diagnostics []string `json:"diagnostics"`
	Fallback    bool     `json:"fallback"`
}

// Specific returns the symptom tags that are not part of the fallback set.
func (a Assessment) Specific() []string {
	out := make([]string, 0, len(a.Symptoms))
	for _, s := range a.Symptoms {
		if !isFallback(s) {
			out = append(out, s)
		}
	}
	return out
}

func isFallback(tag string) bool {
	for _, f := range FallbackSymptoms {
		if f == tag {
			return true
		}
	}
	return false
}

// Infer applies the rule set to r. Rules are independent and OR-combined;
// tags are deduplicated in the order they first fired. Infer is total: any
// Record, including the zero value, yields a non-empty tag list.
func Infer(r Record) Assessment {
	var a assessor

	if r.Hematocrit != nil && *r.Hematocrit < severeHematocrit {
		a.add(TagAnemia, fmt.Sprintf("Severe Anemia (Hematocrit: %.1fg/dL, Normal: 12-16g/dL)", *r.Hematocrit))
	}
	if r.IronDeficiency {
		a.add(TagAnemia, "Iron Deficiency Anemia (Iron deficiency indicator positive)")
	}
	if r.HemoglobinAbnormal {
		a.add(TagAnemia, "Anemia (Hemoglobin abnormal indicator positive)")
	}
	if r.Asthma {
		a.add(TagAsthma, withFindings("Asthma", "Diagnostic marker positive", "Asthma diagnostic marker positive", respiratoryFindings(r)))
	}
	if r.Pneumonia {
		a.add(TagPneumonia, withFindings("Pneumonia", "Diagnostic marker positive", "Pneumonia diagnostic marker positive", respiratoryFindings(r)))
	}
	if r.Depression {
		a.add(TagDepression, "Depression (Diagnostic marker positive)")
	}
	if r.MajorPsychological {
		a.add(TagDepression, "Major Psychological Disorder (Diagnostic marker positive)")
	}
	if r.SubstanceDependence {
		if r.Sodium != nil && *r.Sodium < minSodium {
			a.add(TagSubstanceAbuse, fmt.Sprintf("Substance Dependence (Diagnostic marker positive, possible electrolyte imbalance: Sodium %.1f mEq/L, Normal: 135-145)", *r.Sodium))
		} else {
			a.add(TagSubstanceAbuse, "Substance Dependence (Diagnostic marker positive)")
		}
	}
	if r.DialysisRenalEndStage {
		var findings []string
		if above(r.Creatinine, maxCreatinine) {
			findings = append(findings, fmt.Sprintf("Elevated creatinine: %.2f mg/dL (Normal: 0.6-1.2)", *r.Creatinine))
		}
		if above(r.BloodUreaNitro, maxBloodUreaNitro) {
			findings = append(findings, fmt.Sprintf("Elevated blood urea nitrogen: %.1f mg/dL (Normal: 7-25)", *r.BloodUreaNitro))
		}
		a.add(TagKidneyDisease, withFindings("End-stage Renal Disease", "Dialysis treatment marker positive", "Dialysis treatment marker positive", findings))
	}

	diagnosis := strings.ToLower(r.Diagnosis)
	if diagnosis != "" {
		for _, cat := range diagnosisKeywords {
			for _, kw := range cat.keywords {
				if strings.Contains(diagnosis, kw) {
					a.add(cat.tag, fmt.Sprintf("%s (Diagnosis code contains: %s)", cat.label, kw))
					break
				}
			}
		}
	}

	if len(a.tags) == 0 {
		return Assessment{
			Symptoms:    append([]string(nil), FallbackSymptoms...),
			Diagnostics: []string{},
			Fallback:    true,
		}
	}
	return Assessment{Symptoms: a.tags, Diagnostics: a.diagnostics}
}

type assessor struct {
	tags        []string
	seen        map[string]bool
	diagnostics []string
}

func (a *assessor) add(tag, justification string) {
	if a.seen == nil {
		a.seen = make(map[string]bool)
	}
	if !a.seen[tag] {
		a.seen[tag] = true
		a.tags = append(a.tags, tag)
	}
	a.diagnostics = append(a.diagnostics, justification)
}

// above reports whether v is present and strictly greater than limit.
func above(v *float64, limit float64) bool {
	return v != nil && *v > limit
}

func respiratoryFindings(r Record) []string {
	var findings []string
	if above(r.Respiration, maxRespiration) {
		findings = append(findings, fmt.Sprintf("Elevated respiratory rate: %.1f/min (Normal: 12-20)", *r.Respiration))
	}
	if above(r.Neutrophils, maxNeutrophils) {
		findings = append(findings, fmt.Sprintf("Elevated neutrophils: %.1f%% (Normal: 40-70%%)", *r.Neutrophils))
	}
	return findings
}

func withFindings(label, marker, bare string, findings []string) string {
	if len(findings) == 0 {
		return fmt.Sprintf("%s (%s)", label, bare)
	}
	return fmt.Sprintf("%s (%s, %s)", label, marker, strings.Join(findings, "; "))
}
