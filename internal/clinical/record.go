// Package clinical turns a structured patient record into symptom tags and
// human-readable diagnostic justifications.
package clinical

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Record is one patient encounter. Lab values are optional; a nil lab never
// triggers a threshold rule. Flags default to false and Diagnosis to "".
type Record struct {
	Hematocrit     *float64 `yaml:"hematocrit" json:"hematocrit,omitempty"`
	Respiration    *float64 `yaml:"respiration" json:"respiration,omitempty"`
	Neutrophils    *float64 `yaml:"neutrophils" json:"neutrophils,omitempty"`
	Sodium         *float64 `yaml:"sodium" json:"sodium,omitempty"`
	Creatinine     *float64 `yaml:"creatinine" json:"creatinine,omitempty"`
	BloodUreaNitro *float64 `yaml:"bloodureanitro" json:"bloodureanitro,omitempty"`

	IronDeficiency        bool `yaml:"irondef" json:"irondef"`
	HemoglobinAbnormal    bool `yaml:"hemo" json:"hemo"`
	Asthma                bool `yaml:"asthma" json:"asthma"`
	Pneumonia             bool `yaml:"pneum" json:"pneum"`
	Depression            bool `yaml:"depress" json:"depress"`
	MajorPsychological    bool `yaml:"psychologicaldisordermajor" json:"psychologicaldisordermajor"`
	SubstanceDependence   bool `yaml:"substancedependence" json:"substancedependence"`
	DialysisRenalEndStage bool `yaml:"dialysisrenalendstage" json:"dialysisrenalendstage"`

	Diagnosis string `yaml:"diagnosis" json:"diagnosis"`
}

// Float returns a pointer to v, for building records in code.
func Float(v float64) *float64 { return &v }

// labFields and flagFields map dataset column names to record fields.
var labFields = map[string]func(*Record) **float64{
	"hematocrit":     func(r *Record) **float64 { return &r.Hematocrit },
	"respiration":    func(r *Record) **float64 { return &r.Respiration },
	"neutrophils":    func(r *Record) **float64 { return &r.Neutrophils },
	"sodium":         func(r *Record) **float64 { return &r.Sodium },
	"creatinine":     func(r *Record) **float64 { return &r.Creatinine },
	"bloodureanitro": func(r *Record) **float64 { return &r.BloodUreaNitro },
}

var flagFields = map[string]func(*Record) *bool{
	"irondef":                    func(r *Record) *bool { return &r.IronDeficiency },
	"hemo":                       func(r *Record) *bool { return &r.HemoglobinAbnormal },
	"asthma":                     func(r *Record) *bool { return &r.Asthma },
	"pneum":                      func(r *Record) *bool { return &r.Pneumonia },
	"depress":                    func(r *Record) *bool { return &r.Depression },
	"psychologicaldisordermajor": func(r *Record) *bool { return &r.MajorPsychological },
	"substancedependence":        func(r *Record) *bool { return &r.SubstanceDependence },
	"dialysisrenalendstage":      func(r *Record) *bool { return &r.DialysisRenalEndStage },
}

// RecordFromMap builds a Record from loosely typed column values, as they
// arrive from a CSV row, a YAML file or an MCP tool call. Keys are matched
// case-insensitively; unknown keys are ignored. Flags accept booleans,
// numbers and the strings "1"/"0"/"true"/"false"/"yes"/"no". Values that
// cannot be interpreted are reported as an error naming the key.
func RecordFromMap(m map[string]any) (Record, error) {
	var r Record
	for rawKey, v := range m {
		key := strings.ToLower(strings.TrimSpace(rawKey))
		if v == nil {
			continue
		}
		if field, ok := labFields[key]; ok {
			f, ok, err := toFloat(v)
			if err != nil {
				return Record{}, fmt.Errorf("field %s: %w", rawKey, err)
			}
			if ok {
				*field(&r) = &f
			}
			continue
		}
		if field, ok := flagFields[key]; ok {
			b, err := toFlag(v)
			if err != nil {
				return Record{}, fmt.Errorf("field %s: %w", rawKey, err)
			}
			*field(&r) = b
			continue
		}
		if key == "diagnosis" {
			r.Diagnosis = fmt.Sprint(v)
		}
	}
	return r, nil
}

// DecodeRecord reads a YAML (or JSON) mapping of column names to values.
func DecodeRecord(rd io.Reader) (Record, error) {
	m, err := DecodeFields(rd)
	if err != nil {
		return Record{}, err
	}
	return RecordFromMap(m)
}

// DecodeFields reads the raw mapping DecodeRecord would interpret, with keys
// lowercased so callers can overlay values before building a Record. An
// empty document yields an empty map.
func DecodeFields(rd io.Reader) (map[string]any, error) {
	var raw map[string]any
	if err := yaml.NewDecoder(rd).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("decode patient record: %w", err)
	}
	m := make(map[string]any, len(raw))
	for k, v := range raw {
		m[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return m, nil
}

// toFloat reports ok=false for blank strings and "nan", which the dataset
// uses for missing measurements.
func toFloat(v any) (float64, bool, error) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x), nil
	case float32:
		return float64(x), !math.IsNaN(float64(x)), nil
	case int:
		return float64(x), true, nil
	case int64:
		return float64(x), true, nil
	case uint64:
		return float64(x), true, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "none") {
			return 0, false, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, fmt.Errorf("not a number: %q", x)
		}
		return f, !math.IsNaN(f), nil
	default:
		return 0, false, fmt.Errorf("unsupported value type %T", v)
	}
}

func toFlag(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "1", "1.0", "true", "yes", "y":
			return true, nil
		case "", "0", "0.0", "false", "no", "n", "nan":
			return false, nil
		}
		return false, fmt.Errorf("not a flag: %q", x)
	default:
		f, ok, err := toFloat(v)
		if err != nil {
			return false, err
		}
		return ok && f == 1, nil
	}
}
