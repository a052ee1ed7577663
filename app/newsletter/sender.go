package newsletter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lexfeed/lexfeed/app/content"
	"github.com/lexfeed/lexfeed/app/database"
)

// digestSize is how many recent articles a digest carries.
const digestSize = 10

// Sender composes and publishes the digest email from the most recently
// processed articles.
type Sender struct {
	articles database.ArticleRepository
	store    database.ContentRepository
	client   *Client
	baseURL  string
}

func NewSender(articles database.ArticleRepository, store database.ContentRepository, client *Client, baseURL string) *Sender {
	return &Sender{
		articles: articles,
		store:    store,
		client:   client,
		baseURL:  baseURL,
	}
}

func (s *Sender) Run(ctx context.Context) error {
	articles, err := s.articles.GetProcessedArticles(digestSize)
	if err != nil {
		return fmt.Errorf("failed to load articles for digest: %w", err)
	}

	if len(articles) == 0 {
		slog.Info("No processed articles, skipping digest")
		return nil
	}

	subject := fmt.Sprintf("LexFeed digest, %s", time.Now().UTC().Format("January 2, 2006"))

	body, err := s.compose(articles)
	if err != nil {
		return err
	}

	if err := s.client.CreateEmail(ctx, subject, body); err != nil {
		return err
	}

	slog.Info("Digest sent", "subject", subject, "articles", len(articles))

	return nil
}

// compose renders the digest as Buttondown-flavored markdown, one section
// per article with the easy-tier summary.
func (s *Sender) compose(articles []database.Article) (string, error) {
	var b strings.Builder

	b.WriteString("Your graded reading for today.\n")

	for _, article := range articles {
		summary, err := s.store.GetSummary(article.ID, content.DifficultyEasy, content.LanguageEnglish)
		if err != nil {
			return "", fmt.Errorf("failed to load summary for article %d: %w", article.ID, err)
		}

		fmt.Fprintf(&b, "\n## %s\n\n", article.Title)
		if summary != nil {
			fmt.Fprintf(&b, "%s\n\n", summary.Summary)
		}
		fmt.Fprintf(&b, "[Read at your level](%s/articles/%d.html)\n", s.baseURL, article.ID)
	}

	return b.String(), nil
}
