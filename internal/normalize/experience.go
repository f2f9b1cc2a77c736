package normalize

import (
	"strings"

	"github.com/talentwire/jobharvest/internal/pipeline"
)

var (
	seniorMarkers = []string{"senior", "sr.", "sr ", "lead", "principal", "staff", "head of", "architect"}
	juniorMarkers = []string{"junior", "jr.", "jr ", "entry level", "entry-level", "graduate", "trainee", "intern"}
	midMarkers    = []string{"mid-level", "mid level", "midlevel", "intermediate", "experienced"}
)

// InferExperience derives the seniority band from the title and
// description. Senior markers beat junior markers beat mid markers: a
// "Senior Engineer (junior-friendly team)" stays senior.
func InferExperience(title, description string) pipeline.ExperienceLevel {
	haystack := strings.ToLower(title + " " + description)
	switch {
	case containsAny(haystack, seniorMarkers):
		return pipeline.ExperienceSenior
	case containsAny(haystack, juniorMarkers):
		return pipeline.ExperienceJunior
	case containsAny(haystack, midMarkers):
		return pipeline.ExperienceMid
	}
	return pipeline.ExperienceUnspecified
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
