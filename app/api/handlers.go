package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lexfeed/lexfeed/app/cfg"
	"github.com/lexfeed/lexfeed/app/database"
	"github.com/lexfeed/lexfeed/app/enrich"
	"github.com/lexfeed/lexfeed/app/newsletter"
	"github.com/lexfeed/lexfeed/app/tasks"
)

type Handler struct {
	articles    database.ArticleRepository
	store       database.ContentRepository
	sources     database.SourceRepository
	scheduler   tasks.TaskSchedulerInterface
	processor   *enrich.Processor
	sender      *newsletter.Sender
	maxFailures int
	staleAfter  time.Duration
	version     string
}

func NewHandler(articles database.ArticleRepository, store database.ContentRepository,
	sources database.SourceRepository, scheduler tasks.TaskSchedulerInterface,
	processor *enrich.Processor, sender *newsletter.Sender) *Handler {
	cfg := cfg.Get()

	return &Handler{
		articles:    articles,
		store:       store,
		sources:     sources,
		scheduler:   scheduler,
		processor:   processor,
		sender:      sender,
		maxFailures: cfg.MaxFailures,
		staleAfter:  time.Duration(cfg.StaleAfter) * time.Minute,
		version:     cfg.Version,
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	articleCount, err := h.articles.GetArticleCount()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}

	sourceCount, err := h.sources.GetSourceCount()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, healthResponse{
		Status:   "ok",
		Version:  h.version,
		Articles: articleCount,
		Sources:  sourceCount,
	})
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.articles.GetArticleStats(h.maxFailures)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	sourceCount, err := h.sources.GetSourceCount()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, statsResponse{Articles: stats, Sources: sourceCount})
}

func (h *Handler) ListArticles(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer between 1 and 500"})
			return
		}
		limit = parsed
	}

	articles, err := h.articles.GetProcessedArticles(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	response := make([]articleSummary, 0, len(articles))
	for _, article := range articles {
		response = append(response, summarize(article))
	}

	c.JSON(http.StatusOK, gin.H{"articles": response})
}

func (h *Handler) GetArticle(c *gin.Context) {
	article, ok := h.lookupArticle(c)
	if !ok {
		return
	}

	detail := articleDetail{
		articleSummary: summarize(*article),
		Description:    article.Description,
		Processed:      article.Processed,
		InProgress:     article.InProgress,
		FailureCount:   article.FailureCount,
		LastError:      article.LastError,
	}

	summaries, err := h.store.GetSummaries(article.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for _, s := range summaries {
		detail.Summaries = append(detail.Summaries, tierSummary{
			Difficulty: string(s.Difficulty),
			Language:   string(s.Language),
			Title:      s.Title,
			Summary:    s.Summary,
		})
	}

	c.JSON(http.StatusOK, detail)
}

// ResetArticle returns an exhausted or stuck article to the fresh state
// so the next batch retries it.
func (h *Handler) ResetArticle(c *gin.Context) {
	article, ok := h.lookupArticle(c)
	if !ok {
		return
	}

	if err := h.articles.Reset(article.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "reset", "article_id": article.ID})
}

func (h *Handler) TriggerEnrich(c *gin.Context) {
	h.enqueue(c, tasks.NewEnrichArticlesTask(h.processor))
}

func (h *Handler) TriggerReap(c *gin.Context) {
	h.enqueue(c, tasks.NewReapStaleTask(h.articles, h.staleAfter))
}

func (h *Handler) TriggerNewsletter(c *gin.Context) {
	h.enqueue(c, tasks.NewSendNewsletterTask(h.sender))
}

func (h *Handler) enqueue(c *gin.Context, task tasks.TaskInterface) {
	if err := h.scheduler.EnqueueTask(task); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "task": string(task.GetType())})
}

func (h *Handler) lookupArticle(c *gin.Context) (*database.Article, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "article id must be an integer"})
		return nil, false
	}

	article, err := h.articles.GetArticle(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if article == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
		return nil, false
	}

	return article, true
}

func summarize(article database.Article) articleSummary {
	return articleSummary{
		ID:          article.ID,
		URL:         article.URL,
		Title:       article.Title,
		Category:    article.Category,
		PublishedAt: article.PublishedAt,
		ProcessedAt: article.ProcessedAt,
	}
}
