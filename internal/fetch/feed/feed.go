// Package feed parses syndication XML (RSS 2.0 and Atom) into raw job
// candidates.
package feed

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/talentwire/jobharvest/internal/pipeline"
)

// Parse maps feed entries onto raw item candidates. RSS items and Atom
// entries are both handled; one fetched document is always one page.
func Parse(data []byte) ([]pipeline.RawItemCandidate, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := xmlquery.Find(doc, "//channel/item")
	if len(items) > 0 {
		return parseRSS(items), nil
	}
	entries := xmlquery.Find(doc, "//*[local-name()='feed']/*[local-name()='entry']")
	if len(entries) > 0 {
		return parseAtom(entries), nil
	}
	return nil, nil
}

func parseRSS(items []*xmlquery.Node) []pipeline.RawItemCandidate {
	out := make([]pipeline.RawItemCandidate, 0, len(items))
	for _, item := range items {
		c := pipeline.RawItemCandidate{
			Title:       childText(item, "title"),
			URL:         childText(item, "link"),
			Description: childText(item, "description"),
			Company:     firstText(item, "author", "dc:creator"),
			Location:    childText(item, "location"),
			PostedText:  childText(item, "pubDate"),
			RawPayload:  item.OutputXML(true),
		}
		out = append(out, c)
	}
	return out
}

func parseAtom(entries []*xmlquery.Node) []pipeline.RawItemCandidate {
	out := make([]pipeline.RawItemCandidate, 0, len(entries))
	for _, entry := range entries {
		c := pipeline.RawItemCandidate{
			Title:       localText(entry, "title"),
			URL:         atomLink(entry),
			Description: firstLocalText(entry, "summary", "content"),
			Company:     localText(entry, "author/name"),
			PostedText:  firstLocalText(entry, "published", "updated"),
			RawPayload:  entry.OutputXML(true),
		}
		out = append(out, c)
	}
	return out
}

func childText(node *xmlquery.Node, name string) string {
	child := xmlquery.FindOne(node, name)
	if child == nil {
		return ""
	}
	return strings.TrimSpace(child.InnerText())
}

func firstText(node *xmlquery.Node, names ...string) string {
	for _, name := range names {
		if text := childText(node, name); text != "" {
			return text
		}
	}
	return ""
}

func localText(node *xmlquery.Node, path string) string {
	parts := strings.Split(path, "/")
	expr := ""
	for _, p := range parts {
		expr += fmt.Sprintf("/*[local-name()='%s']", p)
	}
	child := xmlquery.FindOne(node, "."+expr)
	if child == nil {
		return ""
	}
	return strings.TrimSpace(child.InnerText())
}

func firstLocalText(node *xmlquery.Node, names ...string) string {
	for _, name := range names {
		if text := localText(node, name); text != "" {
			return text
		}
	}
	return ""
}

// atomLink prefers the alternate link relation, then any href.
func atomLink(entry *xmlquery.Node) string {
	links := xmlquery.Find(entry, "./*[local-name()='link']")
	var fallback string
	for _, link := range links {
		href := link.SelectAttr("href")
		if href == "" {
			continue
		}
		if link.SelectAttr("rel") == "alternate" || link.SelectAttr("rel") == "" {
			return href
		}
		if fallback == "" {
			fallback = href
		}
	}
	return fallback
}
