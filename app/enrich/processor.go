package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lexfeed/lexfeed/app/content"
	"github.com/lexfeed/lexfeed/app/database"
)

// RunStats summarizes one batch run.
type RunStats struct {
	Selected  int
	Succeeded int
	Failed    int
	Exhausted int
}

// Processor drives one enrichment batch: claim eligible articles, generate
// and validate content for each, and record the per-article outcome. One
// article failing never aborts the rest of the batch.
type Processor struct {
	articles    database.ArticleRepository
	store       database.ContentRepository
	generator   Generator
	validator   *content.Validator
	batchSize   int
	maxFailures int
}

func NewProcessor(articles database.ArticleRepository, store database.ContentRepository,
	generator Generator, validator *content.Validator, batchSize, maxFailures int) *Processor {
	return &Processor{
		articles:    articles,
		store:       store,
		generator:   generator,
		validator:   validator,
		batchSize:   batchSize,
		maxFailures: maxFailures,
	}
}

func (p *Processor) Run(ctx context.Context) (RunStats, error) {
	var stats RunStats

	ids, err := p.articles.ClaimEligible(p.batchSize, p.maxFailures)
	if err != nil {
		return stats, fmt.Errorf("failed to claim batch: %w", err)
	}
	stats.Selected = len(ids)

	for _, id := range ids {
		if ctx.Err() != nil {
			// Remaining claims stay in place; the stale-claim reaper
			// releases them.
			slog.Warn("Enrichment batch interrupted", "remaining", stats.Selected-stats.Succeeded-stats.Failed)
			break
		}

		if err := p.processOne(ctx, id); err != nil {
			stats.Failed++
			slog.Error("Failed to enrich article", "article_id", id, "error", err.Error())

			if recErr := p.articles.RecordFailure(id, err.Error()); recErr != nil {
				slog.Error("Failed to record enrichment failure", "article_id", id, "error", recErr.Error())
			}
			continue
		}

		stats.Succeeded++
		slog.Info("Enriched article", "article_id", id)
	}

	stats.Exhausted, err = p.articles.CountExhausted(p.maxFailures)
	if err != nil {
		return stats, fmt.Errorf("failed to count exhausted articles: %w", err)
	}

	return stats, nil
}

func (p *Processor) processOne(ctx context.Context, id int64) error {
	article, err := p.articles.GetArticle(id)
	if err != nil {
		return err
	}
	if article == nil {
		return fmt.Errorf("claimed article %d no longer exists", id)
	}

	raw, err := p.generator.Run(ctx, *article)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	result, err := p.validator.Run(raw)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	for _, warning := range result.Warnings {
		slog.Warn("Payload warning", "article_id", id, "warning", warning)
	}

	if err := p.store.ApplyResponse(id, result.Payload); err != nil {
		return fmt.Errorf("failed to store content: %w", err)
	}

	return p.articles.RecordSuccess(id, time.Now().UTC())
}
