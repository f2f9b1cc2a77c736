package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// Salary is the structured parse of a free-text compensation string.
type Salary struct {
	Min      *float64
	Max      *float64
	Currency string
	Period   string
}

var salaryNumberPattern = regexp.MustCompile(`(?i)(\d[\d,]*(?:\.\d+)?)\s*(k)?`)

// ParseSalary extracts currency and up to two numeric tokens from a salary
// string. Two numbers become min/max sorted ascending. A single number is
// the minimum, unless prefixed by "up to", which makes it the maximum.
// Any other single-number phrasing ("starting at", "about") is not
// disambiguated; the value lands in Min.
func ParseSalary(text string) Salary {
	text = strings.TrimSpace(text)
	if text == "" {
		return Salary{}
	}

	s := Salary{
		Currency: detectCurrency(text),
		Period:   detectPeriod(text),
	}

	matches := salaryNumberPattern.FindAllStringSubmatch(text, 2)
	var nums []float64
	for _, m := range matches {
		raw := strings.ReplaceAll(m[1], ",", "")
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		if m[2] != "" {
			n *= 1000
		}
		nums = append(nums, n)
	}

	switch len(nums) {
	case 0:
		return s
	case 1:
		if strings.Contains(strings.ToLower(text), "up to") {
			s.Max = &nums[0]
		} else {
			s.Min = &nums[0]
		}
	default:
		lo, hi := nums[0], nums[1]
		if lo > hi {
			lo, hi = hi, lo
		}
		s.Min, s.Max = &lo, &hi
	}
	return s
}

func detectCurrency(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(text, "$") || strings.Contains(lower, "usd"):
		return "USD"
	case strings.Contains(text, "€") || strings.Contains(lower, "eur"):
		return "EUR"
	case strings.Contains(text, "£") || strings.Contains(lower, "gbp"):
		return "GBP"
	}
	return ""
}

func detectPeriod(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "hour") || strings.Contains(lower, "/hr"):
		return "hour"
	case strings.Contains(lower, "month") || strings.Contains(lower, "/mo"):
		return "month"
	case strings.Contains(lower, "year") || strings.Contains(lower, "annum") || strings.Contains(lower, "/yr") || strings.Contains(lower, "annual"):
		return "year"
	}
	return ""
}
