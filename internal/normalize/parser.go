package normalize

import (
	"context"
	"errors"
)

// Confidence weights for the ML parse, per field class. Structure covers
// the non-headline fields (job type, experience, skills) as one bucket.
const (
	weightTitle     = 0.30
	weightCompany   = 0.25
	weightSalary    = 0.20
	weightStructure = 0.25
)

// ErrParserDisabled is returned by DisabledParser; the caller falls back
// to rule-based normalization.
var ErrParserDisabled = errors.New("text parser disabled")

// ParseRequest is the input to a text parse: the raw listing text plus
// optional field-mapping hints.
type ParseRequest struct {
	Text  string            `json:"text"`
	Hints map[string]string `json:"hints,omitempty"`
}

// ParsedFields is the structured candidate record an ML parse produces.
// Absent fields stay zero and are backfilled from the rule-based result.
type ParsedFields struct {
	Title          string   `json:"title"`
	Company        string   `json:"company"`
	Location       string   `json:"location"`
	Remote         bool     `json:"remote"`
	SalaryMin      *float64 `json:"salary_min"`
	SalaryMax      *float64 `json:"salary_max"`
	SalaryCurrency string   `json:"salary_currency"`
	JobType        string   `json:"job_type"`
	Experience     string   `json:"experience_level"`
	Skills         []string `json:"skills"`
}

// ParseResult is a parse candidate with its per-field confidence map.
// Confidence keys are "title", "company", "salary", "structure".
type ParseResult struct {
	Fields          ParsedFields       `json:"fields"`
	FieldConfidence map[string]float64 `json:"confidence"`
	Overall         float64            `json:"overall_confidence"`
}

// TextParser converts free text into a structured parse candidate.
// Implementations must tolerate being unavailable; the pipeline treats
// any error as "use the rule-based result".
type TextParser interface {
	Parse(ctx context.Context, req ParseRequest) (ParseResult, error)
}

// DisabledParser is the no-op TextParser used when ML assistance is off.
type DisabledParser struct{}

// Parse always reports the parser as disabled.
func (DisabledParser) Parse(context.Context, ParseRequest) (ParseResult, error) {
	return ParseResult{}, ErrParserDisabled
}

// WeightedConfidence folds the per-field confidence map into one number
// using the fixed field weights. Missing keys count as zero.
func WeightedConfidence(conf map[string]float64) float64 {
	return conf["title"]*weightTitle +
		conf["company"]*weightCompany +
		conf["salary"]*weightSalary +
		conf["structure"]*weightStructure
}
