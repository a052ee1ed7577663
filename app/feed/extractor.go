package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

// maxPageBytes caps how much of an article page is read. Anything past
// this is ads and boilerplate.
const maxPageBytes = 2 << 20

// Extractor fetches an article page and reduces it to readable text using
// a readability heuristic.
type Extractor struct {
	httpClient *http.Client
	userAgent  string
}

func NewExtractor(userAgent string) *Extractor {
	return &Extractor{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		userAgent: userAgent,
	}
}

func (e *Extractor) Run(ctx context.Context, link string) (string, error) {
	pageURL, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("failed to parse article url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch article page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("article page returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read article page: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), pageURL)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", fmt.Errorf("no content extracted from %s", link)
	}

	slog.Debug("Content extracted", "link", link, "title", article.Title, "content_length", len(text))

	return text, nil
}
