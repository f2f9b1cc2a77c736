// Package quality scores normalized jobs for completeness on a 0-1 scale.
package quality

import "github.com/talentwire/jobharvest/internal/pipeline"

// Additive weights per field. The boosts reward a title of readable
// length and a description long enough to carry real content.
const (
	weightTitle            = 0.20
	boostTitleLength       = 0.05
	weightCompany          = 0.15
	weightLocation         = 0.15
	weightDescription      = 0.20
	boostDescriptionLength = 0.10
	weightSalary           = 0.10
	weightSkills           = 0.10

	titleLengthMin       = 10
	titleLengthMax       = 100
	descriptionLengthMin = 200
)

// Score computes the completeness score for a normalized job. Pure
// function of the record's fields; always within [0, 1].
func Score(job pipeline.NormalizedJob) float64 {
	var score float64

	if job.Title != "" {
		score += weightTitle
		if n := len(job.Title); n >= titleLengthMin && n <= titleLengthMax {
			score += boostTitleLength
		}
	}
	if job.Company != "" {
		score += weightCompany
	}
	if job.Location != "" {
		score += weightLocation
	}
	if job.Description != "" {
		score += weightDescription
		if len(job.Description) > descriptionLengthMin {
			score += boostDescriptionLength
		}
	}
	if job.SalaryMin != nil || job.SalaryMax != nil {
		score += weightSalary
	}
	if len(job.Skills) > 0 {
		score += weightSkills
	}

	if score > 1 {
		score = 1
	}
	return score
}
