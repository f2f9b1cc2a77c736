package normalize

import (
	"strings"

	"github.com/talentwire/jobharvest/internal/pipeline"
)

// jobTypeTable maps the phrasings boards actually use to the canonical
// employment type. Keys are lowercase.
var jobTypeTable = map[string]pipeline.JobType{
	"full-time":  pipeline.JobTypeFullTime,
	"full time":  pipeline.JobTypeFullTime,
	"fulltime":   pipeline.JobTypeFullTime,
	"permanent":  pipeline.JobTypeFullTime,
	"part-time":  pipeline.JobTypePartTime,
	"part time":  pipeline.JobTypePartTime,
	"parttime":   pipeline.JobTypePartTime,
	"contract":   pipeline.JobTypeContract,
	"contractor": pipeline.JobTypeContract,
	"b2b":        pipeline.JobTypeContract,
	"temporary":  pipeline.JobTypeTemporary,
	"temp":       pipeline.JobTypeTemporary,
	"seasonal":   pipeline.JobTypeTemporary,
	"internship": pipeline.JobTypeInternship,
	"intern":     pipeline.JobTypeInternship,
	"freelance":  pipeline.JobTypeFreelance,
	"freelancer": pipeline.JobTypeFreelance,
	"gig":        pipeline.JobTypeFreelance,
}

// ParseJobType maps a raw employment-type string to its canonical value.
// An exact table hit wins; otherwise the longest key found as a substring
// decides, so "Full-Time / Permanent" still resolves.
func ParseJobType(text string) pipeline.JobType {
	key := strings.ToLower(strings.TrimSpace(text))
	if key == "" {
		return pipeline.JobTypeUnknown
	}
	if jt, ok := jobTypeTable[key]; ok {
		return jt
	}

	best := pipeline.JobTypeUnknown
	bestLen := 0
	for k, jt := range jobTypeTable {
		if len(k) > bestLen && strings.Contains(key, k) {
			best = jt
			bestLen = len(k)
		}
	}
	return best
}
