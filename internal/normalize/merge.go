package normalize

import (
	"github.com/talentwire/jobharvest/internal/pipeline"
)

// mergeRecords combines the rule-based record with an ML parse candidate.
// Below the confidence threshold the rule-based record wins outright.
// Above it, present ML fields overwrite the rule-based values and absent
// ones are backfilled from the rules. Pure function of its inputs.
func mergeRecords(rule pipeline.NormalizedJob, ml ParseResult, minConfidence float64) (pipeline.NormalizedJob, pipeline.NormalizationMethod) {
	overall := WeightedConfidence(ml.FieldConfidence)
	if overall < minConfidence {
		return rule, pipeline.MethodRuleBased
	}

	out := rule
	backfilled := false

	takeString := func(dst *string, mlVal string) {
		if mlVal != "" {
			*dst = mlVal
		} else if *dst != "" {
			backfilled = true
		}
	}

	takeString(&out.Title, ml.Fields.Title)
	takeString(&out.Company, ml.Fields.Company)

	if ml.Fields.Location != "" {
		out.Location = ml.Fields.Location
		out.Remote = ml.Fields.Remote
	} else if out.Location != "" {
		backfilled = true
	}

	if ml.Fields.SalaryMin != nil || ml.Fields.SalaryMax != nil {
		out.SalaryMin = copyFloat(ml.Fields.SalaryMin)
		out.SalaryMax = copyFloat(ml.Fields.SalaryMax)
		if ml.Fields.SalaryCurrency != "" {
			out.SalaryCurrency = ml.Fields.SalaryCurrency
		}
	} else if out.SalaryMin != nil || out.SalaryMax != nil {
		backfilled = true
	}

	if jt := ParseJobType(ml.Fields.JobType); jt != pipeline.JobTypeUnknown {
		out.JobType = jt
	} else if out.JobType != pipeline.JobTypeUnknown {
		backfilled = true
	}

	if exp := parseExperienceLabel(ml.Fields.Experience); exp != pipeline.ExperienceUnspecified {
		out.Experience = exp
	} else if out.Experience != pipeline.ExperienceUnspecified {
		backfilled = true
	}

	if len(ml.Fields.Skills) > 0 {
		out.Skills = append([]string(nil), ml.Fields.Skills...)
	} else if len(out.Skills) > 0 {
		backfilled = true
	}

	if backfilled {
		return out, pipeline.MethodHybrid
	}
	return out, pipeline.MethodML
}

func parseExperienceLabel(s string) pipeline.ExperienceLevel {
	switch s {
	case string(pipeline.ExperienceSenior):
		return pipeline.ExperienceSenior
	case string(pipeline.ExperienceMid):
		return pipeline.ExperienceMid
	case string(pipeline.ExperienceJunior):
		return pipeline.ExperienceJunior
	}
	return pipeline.ExperienceUnspecified
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
