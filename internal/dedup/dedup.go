// Package dedup admits extracted candidates exactly once per source using
// a content hash over the identifying fields.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/talentwire/jobharvest/internal/pipeline"
	"github.com/talentwire/jobharvest/internal/store"
)

// descriptionHashLen bounds how much of the description participates in
// the hash. Boards append view counters and relative timestamps to the
// tail of listings, which would defeat exact-hash dedup.
const descriptionHashLen = 200

// Gate admits candidates into the raw item store, rejecting content the
// source has already produced. Uniqueness is scoped per source: two boards
// carrying the same listing are both kept.
type Gate struct {
	store  store.RawItemStore
	hasher pipeline.Hasher
	ids    pipeline.IDGenerator
	clock  pipeline.Clock
}

// NewGate constructs a Gate.
func NewGate(s store.RawItemStore, hasher pipeline.Hasher, ids pipeline.IDGenerator, clock pipeline.Clock) *Gate {
	return &Gate{store: s, hasher: hasher, ids: ids, clock: clock}
}

// ContentHash computes the dedup digest for a candidate. Fields are
// case-folded and whitespace-trimmed so cosmetic re-renderings of the
// same listing collapse to one hash.
func (g *Gate) ContentHash(c pipeline.RawItemCandidate) (string, error) {
	return g.hasher.Hash([]byte(hashInput(c)))
}

// Admit stores the candidate as a raw item, or returns ErrDuplicateItem
// when the source already produced identical content. A known hash is
// rejected without an insert attempt; the unique-insert remains the
// authoritative check, so concurrent admits of the same content still
// elect exactly one winner.
func (g *Gate) Admit(ctx context.Context, sourceID, runID string, c pipeline.RawItemCandidate) (pipeline.RawItem, error) {
	if strings.TrimSpace(c.Title) == "" && strings.TrimSpace(c.URL) == "" {
		return pipeline.RawItem{}, pipeline.ErrExtractionIncomplete
	}
	hash, err := g.ContentHash(c)
	if err != nil {
		return pipeline.RawItem{}, fmt.Errorf("content hash: %w", err)
	}
	if seen, err := g.store.HasContentHash(ctx, sourceID, hash); err != nil {
		return pipeline.RawItem{}, fmt.Errorf("content hash lookup: %w", err)
	} else if seen {
		return pipeline.RawItem{}, pipeline.ErrDuplicateItem
	}
	id, err := g.ids.NewID()
	if err != nil {
		return pipeline.RawItem{}, fmt.Errorf("raw item id: %w", err)
	}

	item := pipeline.RawItem{
		ID:          id,
		SourceID:    sourceID,
		RunID:       runID,
		Title:       c.Title,
		Company:     c.Company,
		Location:    c.Location,
		Description: c.Description,
		URL:         c.URL,
		SalaryText:  c.SalaryText,
		JobTypeText: c.JobTypeText,
		PostedText:  c.PostedText,
		RawPayload:  c.RawPayload,
		ContentHash: hash,
		ExtractedAt: g.clock.Now(),
	}
	if err := g.store.InsertRawItem(ctx, item); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return pipeline.RawItem{}, pipeline.ErrDuplicateItem
		}
		return pipeline.RawItem{}, fmt.Errorf("insert raw item: %w", err)
	}
	return item, nil
}

func hashInput(c pipeline.RawItemCandidate) string {
	desc := strings.TrimSpace(c.Description)
	if runes := []rune(desc); len(runes) > descriptionHashLen {
		desc = string(runes[:descriptionHashLen])
	}
	// URL paths are case-sensitive; only title and description fold.
	parts := []string{
		strings.ToLower(strings.TrimSpace(c.Title)),
		strings.TrimSpace(c.URL),
		strings.ToLower(desc),
	}
	return strings.Join(parts, "\x1f")
}
