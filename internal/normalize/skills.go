package normalize

import (
	"regexp"
	"strings"
)

// techKeywords maps a match pattern to the canonical skill label. Word
// boundaries keep "go" from matching inside "good" and "r" from matching
// everywhere.
var techKeywords = []struct {
	pattern *regexp.Regexp
	label   string
}{
	{regexp.MustCompile(`(?i)\bgolang\b|\bgo\b`), "Go"},
	{regexp.MustCompile(`(?i)\bpython\b`), "Python"},
	{regexp.MustCompile(`(?i)\bjava\b`), "Java"},
	{regexp.MustCompile(`(?i)\bjavascript\b|\bjs\b`), "JavaScript"},
	{regexp.MustCompile(`(?i)\btypescript\b`), "TypeScript"},
	{regexp.MustCompile(`(?i)\breact\b`), "React"},
	{regexp.MustCompile(`(?i)\bnode(\.js)?\b`), "Node.js"},
	{regexp.MustCompile(`(?i)\bruby\b`), "Ruby"},
	{regexp.MustCompile(`(?i)\bphp\b`), "PHP"},
	{regexp.MustCompile(`(?i)\brust\b`), "Rust"},
	{regexp.MustCompile(`(?i)c\+\+`), "C++"},
	{regexp.MustCompile(`(?i)\bc#\B`), "C#"},
	{regexp.MustCompile(`(?i)\bswift\b`), "Swift"},
	{regexp.MustCompile(`(?i)\bkotlin\b`), "Kotlin"},
	{regexp.MustCompile(`(?i)\bsql\b`), "SQL"},
	{regexp.MustCompile(`(?i)\bpostgres(ql)?\b`), "PostgreSQL"},
	{regexp.MustCompile(`(?i)\bmysql\b`), "MySQL"},
	{regexp.MustCompile(`(?i)\bmongodb\b`), "MongoDB"},
	{regexp.MustCompile(`(?i)\bredis\b`), "Redis"},
	{regexp.MustCompile(`(?i)\belasticsearch\b`), "Elasticsearch"},
	{regexp.MustCompile(`(?i)\bkafka\b`), "Kafka"},
	{regexp.MustCompile(`(?i)\bdocker\b`), "Docker"},
	{regexp.MustCompile(`(?i)\bkubernetes\b|\bk8s\b`), "Kubernetes"},
	{regexp.MustCompile(`(?i)\bterraform\b`), "Terraform"},
	{regexp.MustCompile(`(?i)\baws\b`), "AWS"},
	{regexp.MustCompile(`(?i)\bgcp\b|\bgoogle cloud\b`), "GCP"},
	{regexp.MustCompile(`(?i)\bazure\b`), "Azure"},
	{regexp.MustCompile(`(?i)\blinux\b`), "Linux"},
	{regexp.MustCompile(`(?i)\bgit\b`), "Git"},
	{regexp.MustCompile(`(?i)\bgraphql\b`), "GraphQL"},
}

// ExtractSkills scans free text for known technology keywords and returns
// the canonical labels in pattern-table order, each at most once.
func ExtractSkills(text string) []string {
	if text == "" {
		return nil
	}
	var skills []string
	for _, kw := range techKeywords {
		if kw.pattern.MatchString(text) {
			skills = append(skills, kw.label)
		}
	}
	return skills
}

// benefitCategories maps keyword markers to the benefit label reported
// when any marker matches.
var benefitCategories = []struct {
	markers []string
	label   string
}{
	{[]string{"health insurance", "medical insurance", "healthcare"}, "Health insurance"},
	{[]string{"dental"}, "Dental coverage"},
	{[]string{"vision"}, "Vision coverage"},
	{[]string{"401(k)", "401k", "pension", "retirement plan"}, "Retirement plan"},
	{[]string{"paid time off", "pto", "paid vacation", "paid holidays"}, "Paid time off"},
	{[]string{"parental leave", "maternity", "paternity"}, "Parental leave"},
	{[]string{"equity", "stock options", "rsu"}, "Equity"},
	{[]string{"flexible hours", "flexible schedule", "flex time"}, "Flexible hours"},
	{[]string{"gym", "wellness", "fitness stipend"}, "Wellness benefits"},
	{[]string{"learning budget", "education budget", "conference budget", "tuition"}, "Learning budget"},
}

// requirementCategories work the same way for the requirements list.
var requirementCategories = []struct {
	markers []string
	label   string
}{
	{[]string{"years of experience", "years' experience", "yoe"}, "Professional experience"},
	{[]string{"bachelor", "bs degree", "b.s."}, "Bachelor's degree"},
	{[]string{"master", "ms degree", "m.s.", "phd"}, "Advanced degree"},
	{[]string{"security clearance"}, "Security clearance"},
	{[]string{"on-call", "on call rotation"}, "On-call rotation"},
	{[]string{"travel required", "willingness to travel"}, "Travel"},
	{[]string{"authorized to work", "work authorization", "visa sponsorship not"}, "Work authorization"},
}

// ExtractBenefits matches benefit keyword categories in free text.
func ExtractBenefits(text string) []string {
	return matchCategories(text, benefitCategories)
}

// ExtractRequirements matches requirement keyword categories in free text.
func ExtractRequirements(text string) []string {
	return matchCategories(text, requirementCategories)
}

func matchCategories(text string, categories []struct {
	markers []string
	label   string
}) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	var out []string
	for _, cat := range categories {
		if containsAny(lower, cat.markers) {
			out = append(out, cat.label)
		}
	}
	return out
}
