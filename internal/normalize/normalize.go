// Package normalize turns raw extracted job fragments into cleaned,
// structured records, optionally assisted by an ML text parse with a
// deterministic rule-based fallback.
package normalize

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/talentwire/jobharvest/internal/pipeline"
)

// Normalizer runs the normalization pipeline for raw items.
type Normalizer struct {
	parser        TextParser
	ids           pipeline.IDGenerator
	clock         pipeline.Clock
	minConfidence float64
	logger        *zap.Logger
}

// New constructs a Normalizer. The parser may be DisabledParser{} when ML
// assistance is globally off.
func New(parser TextParser, ids pipeline.IDGenerator, clock pipeline.Clock, minConfidence float64, logger *zap.Logger) *Normalizer {
	if parser == nil {
		parser = DisabledParser{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{
		parser:        parser,
		ids:           ids,
		clock:         clock,
		minConfidence: minConfidence,
		logger:        logger,
	}
}

// Normalize produces the normalized job for a raw item. Returns
// ErrNormalizationFailed when the title is empty after cleaning; such an
// item carries nothing a listing could be built from.
func (n *Normalizer) Normalize(ctx context.Context, src pipeline.Source, item pipeline.RawItem) (pipeline.NormalizedJob, error) {
	job := n.ruleBased(item)
	if job.Title == "" {
		return pipeline.NormalizedJob{}, pipeline.ErrNormalizationFailed
	}

	method := pipeline.MethodRuleBased
	if src.MLEnabled {
		result, err := n.parser.Parse(ctx, ParseRequest{Text: parseText(item)})
		if err != nil {
			// ML assistance is best effort; the rules already produced
			// a usable record.
			if err != ErrParserDisabled {
				n.logger.Warn("ml parse failed, using rule-based result",
					zap.String("raw_item_id", item.ID),
					zap.Error(err),
				)
			}
		} else {
			job, method = mergeRecords(job, result, n.minConfidence)
		}
	}
	job.Method = method

	id, err := n.ids.NewID()
	if err != nil {
		return pipeline.NormalizedJob{}, fmt.Errorf("normalized job id: %w", err)
	}
	job.ID = id
	job.NormalizedAt = n.clock.Now()
	return job, nil
}

// ruleBased runs the deterministic steps: clean, canonicalize, parse,
// classify, extract.
func (n *Normalizer) ruleBased(item pipeline.RawItem) pipeline.NormalizedJob {
	title := Clean(item.Title)
	description := Clean(item.Description)
	location, remote := CanonicalLocation(item.Location)
	salary := ParseSalary(item.SalaryText)

	classifyText := title + " " + description

	return pipeline.NormalizedJob{
		RawItemID:      item.ID,
		SourceID:       item.SourceID,
		Title:          title,
		Company:        Clean(item.Company),
		Location:       location,
		Description:    description,
		URL:            item.URL,
		Remote:         remote,
		SalaryMin:      salary.Min,
		SalaryMax:      salary.Max,
		SalaryCurrency: salary.Currency,
		SalaryPeriod:   salary.Period,
		JobType:        ParseJobType(item.JobTypeText),
		Experience:     InferExperience(title, description),
		Skills:         ExtractSkills(classifyText),
		Benefits:       ExtractBenefits(description),
		Requirements:   ExtractRequirements(description),
		PostedAt:       ParsePostedDate(item.PostedText, n.clock.Now()),
	}
}

func parseText(item pipeline.RawItem) string {
	return item.Title + "\n" + item.Company + "\n" + item.Location + "\n" +
		item.SalaryText + "\n" + item.Description
}
