package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lexfeed/lexfeed/app/content"
	"github.com/lexfeed/lexfeed/app/database"
	"github.com/lexfeed/lexfeed/app/tasks"
)

const testAPIKey = "test-api-key"

type fakeScheduler struct {
	enqueued []tasks.TaskInterface
}

func (s *fakeScheduler) Start() {}
func (s *fakeScheduler) Stop()  {}

func (s *fakeScheduler) EnqueueTask(task tasks.TaskInterface) error {
	s.enqueued = append(s.enqueued, task)
	return nil
}

type apiFixture struct {
	router    *gin.Engine
	articles  database.ArticleRepository
	store     database.ContentRepository
	scheduler *fakeScheduler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewConnection() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	scheduler := &fakeScheduler{}

	handler := &Handler{
		articles:    database.NewArticleRepository(db),
		store:       database.NewContentRepository(db),
		sources:     database.NewSourceRepository(db),
		scheduler:   scheduler,
		maxFailures: 3,
		staleAfter:  30 * time.Minute,
		version:     "test",
	}

	return &apiFixture{
		router:    NewServer(handler, testAPIKey),
		articles:  handler.articles,
		store:     handler.store,
		scheduler: scheduler,
	}
}

func (f *apiFixture) request(t *testing.T, method, path, apiKey string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), into); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}

func TestHealthCheck(t *testing.T) {
	f := newAPIFixture(t)

	w := f.request(t, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d, want 200", w.Code)
	}

	var resp healthResponse
	decodeJSON(t, w, &resp)
	if resp.Status != "ok" || resp.Version != "test" {
		t.Errorf("health = %+v", resp)
	}
}

func TestGetStats(t *testing.T) {
	f := newAPIFixture(t)

	if _, _, err := f.articles.InsertArticle(database.NewArticle{URL: "https://example.com/a"}); err != nil {
		t.Fatalf("InsertArticle() error = %v", err)
	}

	w := f.request(t, http.MethodGet, "/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /stats = %d, want 200", w.Code)
	}

	var resp statsResponse
	decodeJSON(t, w, &resp)
	if resp.Articles.Total != 1 || resp.Articles.Pending != 1 {
		t.Errorf("stats = %+v", resp)
	}
}

func TestGetArticle(t *testing.T) {
	f := newAPIFixture(t)

	id, _, err := f.articles.InsertArticle(database.NewArticle{URL: "https://example.com/a", Title: "Headline"})
	if err != nil {
		t.Fatalf("InsertArticle() error = %v", err)
	}

	section := &content.Section{Title: "Headline", Summary: "A short summary."}
	err = f.store.ApplyResponse(id, &content.Payload{
		Easy: section, Mid: section, Hard: section,
		CN: &content.Section{Title: "标题", Summary: "摘要"},
	})
	if err != nil {
		t.Fatalf("ApplyResponse() error = %v", err)
	}

	w := f.request(t, http.MethodGet, "/articles/1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /articles/1 = %d, want 200", w.Code)
	}

	var resp articleDetail
	decodeJSON(t, w, &resp)
	if resp.Title != "Headline" {
		t.Errorf("Title = %q", resp.Title)
	}
	if len(resp.Summaries) != 4 {
		t.Errorf("Summaries = %d entries, want 4", len(resp.Summaries))
	}
}

func TestGetArticleNotFound(t *testing.T) {
	f := newAPIFixture(t)

	if w := f.request(t, http.MethodGet, "/articles/999", ""); w.Code != http.StatusNotFound {
		t.Errorf("GET /articles/999 = %d, want 404", w.Code)
	}
	if w := f.request(t, http.MethodGet, "/articles/banana", ""); w.Code != http.StatusBadRequest {
		t.Errorf("GET /articles/banana = %d, want 400", w.Code)
	}
}

func TestListArticlesOnlyProcessed(t *testing.T) {
	f := newAPIFixture(t)

	processed, _, err := f.articles.InsertArticle(database.NewArticle{URL: "https://example.com/done", Title: "Done"})
	if err != nil {
		t.Fatalf("InsertArticle() error = %v", err)
	}
	if _, _, err := f.articles.InsertArticle(database.NewArticle{URL: "https://example.com/raw", Title: "Raw"}); err != nil {
		t.Fatalf("InsertArticle() error = %v", err)
	}
	if err := f.articles.RecordSuccess(processed, time.Now().UTC()); err != nil {
		t.Fatalf("RecordSuccess() error = %v", err)
	}

	w := f.request(t, http.MethodGet, "/articles", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /articles = %d, want 200", w.Code)
	}

	var resp struct {
		Articles []articleSummary `json:"articles"`
	}
	decodeJSON(t, w, &resp)
	if len(resp.Articles) != 1 || resp.Articles[0].Title != "Done" {
		t.Errorf("articles = %+v", resp.Articles)
	}
}

func TestListArticlesBadLimit(t *testing.T) {
	f := newAPIFixture(t)

	if w := f.request(t, http.MethodGet, "/articles?limit=0", ""); w.Code != http.StatusBadRequest {
		t.Errorf("GET /articles?limit=0 = %d, want 400", w.Code)
	}
}

func TestResetArticleAuth(t *testing.T) {
	f := newAPIFixture(t)

	id, _, err := f.articles.InsertArticle(database.NewArticle{URL: "https://example.com/a"})
	if err != nil {
		t.Fatalf("InsertArticle() error = %v", err)
	}
	for range 3 {
		if err := f.articles.RecordFailure(id, "boom"); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}

	if w := f.request(t, http.MethodPost, "/api/articles/1/reset", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("reset without key = %d, want 401", w.Code)
	}
	if w := f.request(t, http.MethodPost, "/api/articles/1/reset", "wrong-key"); w.Code != http.StatusUnauthorized {
		t.Errorf("reset with wrong key = %d, want 401", w.Code)
	}

	w := f.request(t, http.MethodPost, "/api/articles/1/reset", testAPIKey)
	if w.Code != http.StatusOK {
		t.Fatalf("reset with key = %d, want 200", w.Code)
	}

	article, err := f.articles.GetArticle(id)
	if err != nil {
		t.Fatalf("GetArticle() error = %v", err)
	}
	if article.FailureCount != 0 {
		t.Errorf("FailureCount = %d after reset, want 0", article.FailureCount)
	}
}

func TestTriggerEndpointsEnqueue(t *testing.T) {
	f := newAPIFixture(t)

	endpoints := map[string]tasks.TaskType{
		"/api/enrich":     tasks.TaskTypeEnrichArticles,
		"/api/reap":       tasks.TaskTypeReapStale,
		"/api/newsletter": tasks.TaskTypeSendNewsletter,
	}

	for path, wantType := range endpoints {
		w := f.request(t, http.MethodPost, path, testAPIKey)
		if w.Code != http.StatusAccepted {
			t.Errorf("POST %s = %d, want 202", path, w.Code)
			continue
		}

		last := f.scheduler.enqueued[len(f.scheduler.enqueued)-1]
		if last.GetType() != wantType {
			t.Errorf("POST %s enqueued %q, want %q", path, last.GetType(), wantType)
		}
	}
}
