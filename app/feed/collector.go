package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lexfeed/lexfeed/app/database"
)

const maxFeedBytes = 10 << 20

// CollectStats summarizes one source collection run.
type CollectStats struct {
	Fetched  int
	Kept     int
	Inserted int
}

// Collector fetches one source's feed and turns new entries into
// articles. Known URLs are skipped; new articles optionally get their
// full text extracted from the article page.
type Collector struct {
	sources   database.SourceRepository
	articles  database.ArticleRepository
	cache     *SourceCache
	parser    *Parser
	filterer  *Filterer
	extractor *Extractor
	userAgent string
}

func NewCollector(sources database.SourceRepository, articles database.ArticleRepository,
	cache *SourceCache, extractor *Extractor, userAgent string) *Collector {
	return &Collector{
		sources:   sources,
		articles:  articles,
		cache:     cache,
		parser:    NewParser(),
		filterer:  NewFilterer(),
		extractor: extractor,
		userAgent: userAgent,
	}
}

func (c *Collector) Run(ctx context.Context, name string) (CollectStats, error) {
	var stats CollectStats

	config, err := c.cache.GetConfig(name)
	if err != nil {
		return stats, err
	}

	if !config.Settings.Enabled {
		slog.Debug("Source disabled, skipping", "source", name)
		return stats, nil
	}

	if err := c.sources.UpsertSource(name, config.URL, config.Category); err != nil {
		return stats, err
	}

	data, err := c.fetch(ctx, config)
	if err != nil {
		return stats, err
	}

	metadata, items, err := c.parser.Run(data)
	if err != nil {
		return stats, err
	}
	stats.Fetched = len(items)

	items = c.filterer.Run(items, config)
	if config.Settings.MaxItems > 0 && len(items) > config.Settings.MaxItems {
		items = items[:config.Settings.MaxItems]
	}
	stats.Kept = len(items)

	for _, item := range items {
		if item.Link == "" {
			continue
		}

		id, created, err := c.articles.InsertArticle(database.NewArticle{
			URL:         item.Link,
			Title:       item.Title,
			Description: item.Description,
			Content:     item.Content,
			Category:    config.Category,
			PublishedAt: item.PublishedAt,
		})
		if err != nil {
			return stats, fmt.Errorf("failed to store item %s: %w", item.Link, err)
		}
		if !created {
			continue
		}
		stats.Inserted++

		if config.Settings.ExtractContent {
			c.extractInto(ctx, id, item.Link)
		}
	}

	nextFetch := time.Now().UTC().Add(time.Duration(config.Settings.RefreshInterval) * time.Second)
	if err := c.sources.UpdateNextFetch(name, nextFetch); err != nil {
		return stats, err
	}

	slog.Info("Collected source", "source", name, "feed_title", metadata.Title,
		"fetched", stats.Fetched, "kept", stats.Kept, "inserted", stats.Inserted)

	return stats, nil
}

// extractInto is best effort: the feed-provided content stays in place
// when the page cannot be extracted.
func (c *Collector) extractInto(ctx context.Context, id int64, link string) {
	text, err := c.extractor.Run(ctx, link)
	if err != nil {
		slog.Warn("Content extraction failed", "article_id", id, "link", link, "error", err.Error())
		return
	}

	if err := c.articles.UpdateArticleContent(id, text); err != nil {
		slog.Warn("Failed to store extracted content", "article_id", id, "error", err.Error())
	}
}

func (c *Collector) fetch(ctx context.Context, config *Config) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(config.Settings.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed body: %w", err)
	}

	return data, nil
}
