package site

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lexfeed/lexfeed/app/content"
	"github.com/lexfeed/lexfeed/app/database"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// maxIndexArticles bounds how many articles the generated index lists.
const maxIndexArticles = 100

// Generator renders the static reading site from processed articles. The
// output directory is safe to serve as-is.
type Generator struct {
	articles  database.ArticleRepository
	store     database.ContentRepository
	outDir    string
	baseURL   string
	templates *template.Template
}

type articlePage struct {
	Article     database.Article
	Lang        string
	Tiers       []tierContent
	ChineseTier *database.Summary
	ChineseLang string
	GeneratedAt time.Time
	BaseURL     string
}

type tierContent struct {
	Difficulty content.Difficulty
	Summary    *database.Summary
	Keywords   []database.Keyword
	Questions  []database.Question
	Background []database.BackgroundParagraph
	Comments   []database.Comment
}

type indexPage struct {
	Articles    []indexEntry
	Lang        string
	GeneratedAt time.Time
	BaseURL     string
}

type indexEntry struct {
	Article database.Article
	Teaser  string
}

func NewGenerator(articles database.ArticleRepository, store database.ContentRepository, outDir, baseURL string) (*Generator, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse site templates: %w", err)
	}

	return &Generator{
		articles:  articles,
		store:     store,
		outDir:    outDir,
		baseURL:   baseURL,
		templates: templates,
	}, nil
}

func (g *Generator) Run() error {
	start := time.Now()

	articles, err := g.articles.GetProcessedArticles(maxIndexArticles)
	if err != nil {
		return fmt.Errorf("failed to load processed articles: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(g.outDir, "articles"), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	now := time.Now().UTC()
	index := indexPage{
		Lang:        content.LanguageEnglish.Tag().String(),
		GeneratedAt: now,
		BaseURL:     g.baseURL,
	}

	for _, article := range articles {
		teaser, err := g.renderArticle(article, now)
		if err != nil {
			return err
		}
		index.Articles = append(index.Articles, indexEntry{Article: article, Teaser: teaser})
	}

	if err := g.renderToFile("index.html.tmpl", filepath.Join(g.outDir, "index.html"), index); err != nil {
		return err
	}

	slog.Info("Site generated", "articles", len(articles), "out_dir", g.outDir, "duration", time.Since(start))

	return nil
}

// renderArticle writes one article page and returns the easy-tier summary
// for use as the index teaser.
func (g *Generator) renderArticle(article database.Article, now time.Time) (string, error) {
	page := articlePage{
		Article:     article,
		Lang:        content.LanguageEnglish.Tag().String(),
		ChineseLang: content.LanguageChinese.Tag().String(),
		GeneratedAt: now,
		BaseURL:     g.baseURL,
	}

	for _, difficulty := range content.Difficulties {
		tier := tierContent{Difficulty: difficulty}

		var err error
		if tier.Summary, err = g.store.GetSummary(article.ID, difficulty, content.LanguageEnglish); err != nil {
			return "", err
		}
		if tier.Keywords, err = g.store.GetKeywords(article.ID, difficulty); err != nil {
			return "", err
		}
		if tier.Questions, err = g.store.GetQuestions(article.ID, difficulty); err != nil {
			return "", err
		}
		if tier.Background, err = g.store.GetBackground(article.ID, difficulty); err != nil {
			return "", err
		}
		if tier.Comments, err = g.store.GetComments(article.ID, difficulty); err != nil {
			return "", err
		}

		page.Tiers = append(page.Tiers, tier)
	}

	chinese, err := g.store.GetSummary(article.ID, content.DifficultyHard, content.LanguageChinese)
	if err != nil {
		return "", err
	}
	page.ChineseTier = chinese

	outFile := filepath.Join(g.outDir, "articles", fmt.Sprintf("%d.html", article.ID))
	if err := g.renderToFile("article.html.tmpl", outFile, page); err != nil {
		return "", err
	}

	var teaser string
	for _, tier := range page.Tiers {
		if tier.Difficulty == content.DifficultyEasy && tier.Summary != nil {
			teaser = tier.Summary.Summary
		}
	}

	return teaser, nil
}

func (g *Generator) renderToFile(templateName, outFile string, data any) error {
	f, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outFile, err)
	}
	defer f.Close()

	if err := g.templates.ExecuteTemplate(f, templateName, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", templateName, err)
	}

	return nil
}
