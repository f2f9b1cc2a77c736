// Package extract maps raw page content into raw job candidates using
// source-specific CSS selectors with a generic fallback table.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/talentwire/jobharvest/internal/pipeline"
)

// genericSelectors is the fallback table applied when a source-specific
// selector misses. Patterns cover the structural conventions most job
// boards share.
var genericSelectors = pipeline.Selectors{
	Item:        ".job-listing, .job-card, .job-item, article.job, li.result, [data-job-id]",
	Title:       ".job-title, h2 a, h3 a, h2, h3, [itemprop=title]",
	Company:     ".company, .company-name, .employer, [itemprop=hiringOrganization]",
	Location:    ".location, .job-location, [itemprop=jobLocation]",
	Description: ".description, .job-description, .summary, [itemprop=description]",
	URL:         "a",
	Salary:      ".salary, .job-salary, .compensation, [itemprop=baseSalary]",
	JobType:     ".job-type, .employment-type, [itemprop=employmentType]",
	PostedDate:  ".date, .posted, .job-date, time",
}

// Extractor turns HTML into raw item candidates.
type Extractor struct{}

// New constructs an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract parses pageHTML and returns one candidate per item node. A
// candidate missing both title and URL cannot be deduplicated or
// normalized, so it is dropped here and counted by the caller.
func (e *Extractor) Extract(pageHTML []byte, baseURL string, selectors pipeline.Selectors) ([]pipeline.RawItemCandidate, int, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(pageHTML))
	if err != nil {
		return nil, 0, fmt.Errorf("parse page: %w", err)
	}

	items := doc.Find(firstNonEmpty(selectors.Item, genericSelectors.Item))
	if items.Length() == 0 && selectors.Item != "" {
		// Source selector missed entirely; retry with the generic table.
		items = doc.Find(genericSelectors.Item)
	}

	var (
		candidates []pipeline.RawItemCandidate
		dropped    int
	)
	items.Each(func(_ int, sel *goquery.Selection) {
		c := e.extractItem(sel, baseURL, selectors)
		if c.Title == "" && c.URL == "" {
			dropped++
			return
		}
		candidates = append(candidates, c)
	})
	return candidates, dropped, nil
}

func (e *Extractor) extractItem(sel *goquery.Selection, baseURL string, selectors pipeline.Selectors) pipeline.RawItemCandidate {
	html, _ := goquery.OuterHtml(sel)
	return pipeline.RawItemCandidate{
		Title:       fieldText(sel, selectors.Title, genericSelectors.Title),
		Company:     fieldText(sel, selectors.Company, genericSelectors.Company),
		Location:    fieldText(sel, selectors.Location, genericSelectors.Location),
		Description: fieldText(sel, selectors.Description, genericSelectors.Description),
		URL:         fieldHref(sel, baseURL, selectors.URL, genericSelectors.URL),
		SalaryText:  fieldText(sel, selectors.Salary, genericSelectors.Salary),
		JobTypeText: fieldText(sel, selectors.JobType, genericSelectors.JobType),
		PostedText:  fieldText(sel, selectors.PostedDate, genericSelectors.PostedDate),
		RawPayload:  html,
	}
}

// fieldText applies the source selector first, then the generic fallback.
func fieldText(sel *goquery.Selection, primary, fallback string) string {
	if primary != "" {
		if text := strings.TrimSpace(sel.Find(primary).First().Text()); text != "" {
			return text
		}
	}
	if fallback != "" {
		return strings.TrimSpace(sel.Find(fallback).First().Text())
	}
	return ""
}

func fieldHref(sel *goquery.Selection, baseURL, primary, fallback string) string {
	for _, selector := range []string{primary, fallback} {
		if selector == "" {
			continue
		}
		node := sel.Find(selector).First()
		href, ok := node.Attr("href")
		if !ok || href == "" {
			continue
		}
		return absoluteURL(baseURL, href)
	}
	// The item node itself may be the anchor.
	if href, ok := sel.Attr("href"); ok && href != "" {
		return absoluteURL(baseURL, href)
	}
	return ""
}

// absoluteURL resolves relative hrefs against the page URL.
func absoluteURL(baseURL, href string) string {
	base, err := url.Parse(baseURL)
	if err != nil || baseURL == "" {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// NextPageURL returns the pagination target for the page, or empty when the
// page has no next link.
func (e *Extractor) NextPageURL(pageHTML []byte, baseURL string, selectors pipeline.Selectors) string {
	selector := firstNonEmpty(selectors.NextPage, "a[rel=next], .pagination .next a, a.next")
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(pageHTML))
	if err != nil {
		return ""
	}
	node := doc.Find(selector).First()
	href, ok := node.Attr("href")
	if !ok || href == "" {
		return ""
	}
	return absoluteURL(baseURL, href)
}

// Signature fingerprints an extraction result so the pagination loop can
// detect drifting search params that keep serving the same items.
func Signature(candidates []pipeline.RawItemCandidate) string {
	var b strings.Builder
	for _, c := range candidates {
		b.WriteString(c.Title)
		b.WriteByte('|')
		b.WriteString(c.URL)
		b.WriteByte('\n')
	}
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
