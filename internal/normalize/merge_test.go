package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/talentwire/jobharvest/internal/pipeline"
)

func ruleRecord() pipeline.NormalizedJob {
	return pipeline.NormalizedJob{
		Title:          "Software Engineer",
		Company:        "Acme",
		Location:       "Austin, TX",
		SalaryMin:      fp(80000),
		SalaryMax:      fp(120000),
		SalaryCurrency: "USD",
		JobType:        pipeline.JobTypeFullTime,
		Experience:     pipeline.ExperienceMid,
		Skills:         []string{"Go"},
	}
}

func highConfidence() map[string]float64 {
	return map[string]float64{"title": 0.95, "company": 0.9, "salary": 0.9, "structure": 0.9}
}

func TestWeightedConfidence(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 0.0, WeightedConfidence(nil), 1e-9)
	require.InDelta(t, 1.0, WeightedConfidence(map[string]float64{
		"title": 1, "company": 1, "salary": 1, "structure": 1,
	}), 1e-9)
	require.InDelta(t, 0.30, WeightedConfidence(map[string]float64{"title": 1}), 1e-9)
}

func TestMergeRecords_LowConfidenceUsesRules(t *testing.T) {
	t.Parallel()

	ml := ParseResult{
		Fields:          ParsedFields{Title: "Totally Different"},
		FieldConfidence: map[string]float64{"title": 0.4},
	}
	got, method := mergeRecords(ruleRecord(), ml, 0.7)
	require.Equal(t, pipeline.MethodRuleBased, method)
	require.Equal(t, ruleRecord(), got)
}

func TestMergeRecords_BackfillsMissingFields(t *testing.T) {
	t.Parallel()

	ml := ParseResult{
		Fields: ParsedFields{
			Title:   "Senior Software Engineer",
			Company: "Acme Corp",
			// Location, salary, job type, experience, skills absent.
		},
		FieldConfidence: highConfidence(),
	}
	got, method := mergeRecords(ruleRecord(), ml, 0.7)
	require.Equal(t, pipeline.MethodHybrid, method)
	require.Equal(t, "Senior Software Engineer", got.Title)
	require.Equal(t, "Acme Corp", got.Company)
	require.Equal(t, "Austin, TX", got.Location)
	require.Equal(t, fp(80000), got.SalaryMin)
	require.Equal(t, pipeline.JobTypeFullTime, got.JobType)
	require.Equal(t, []string{"Go"}, got.Skills)
}

func TestMergeRecords_FullMLResult(t *testing.T) {
	t.Parallel()

	ml := ParseResult{
		Fields: ParsedFields{
			Title:          "Senior Software Engineer",
			Company:        "Acme Corp",
			Location:       "Remote",
			Remote:         true,
			SalaryMin:      fp(100000),
			SalaryMax:      fp(140000),
			SalaryCurrency: "USD",
			JobType:        "contract",
			Experience:     "senior",
			Skills:         []string{"Go", "Kubernetes"},
		},
		FieldConfidence: highConfidence(),
	}
	got, method := mergeRecords(ruleRecord(), ml, 0.7)
	require.Equal(t, pipeline.MethodML, method)
	require.Equal(t, "Remote", got.Location)
	require.True(t, got.Remote)
	require.Equal(t, fp(100000), got.SalaryMin)
	require.Equal(t, fp(140000), got.SalaryMax)
	require.Equal(t, pipeline.JobTypeContract, got.JobType)
	require.Equal(t, pipeline.ExperienceSenior, got.Experience)
	require.Equal(t, []string{"Go", "Kubernetes"}, got.Skills)
}

func TestMergeRecords_Deterministic(t *testing.T) {
	t.Parallel()

	ml := ParseResult{
		Fields:          ParsedFields{Title: "Senior Software Engineer"},
		FieldConfidence: highConfidence(),
	}
	first, m1 := mergeRecords(ruleRecord(), ml, 0.7)
	for i := 0; i < 10; i++ {
		again, m2 := mergeRecords(ruleRecord(), ml, 0.7)
		require.Equal(t, first, again)
		require.Equal(t, m1, m2)
	}
}
