package database

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewConnection() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	return db
}

func insertTestArticle(t *testing.T, repo ArticleRepository, url string) int64 {
	t.Helper()

	id, created, err := repo.InsertArticle(NewArticle{
		URL:   url,
		Title: "Test Article",
	})
	if err != nil {
		t.Fatalf("InsertArticle() error = %v", err)
	}
	if !created {
		t.Fatalf("InsertArticle() created = false, want true")
	}

	return id
}

func TestInsertArticleDeduplicates(t *testing.T) {
	repo := NewArticleRepository(newTestDB(t))

	id, created, err := repo.InsertArticle(NewArticle{URL: "https://example.com/a", Title: "First"})
	if err != nil {
		t.Fatalf("InsertArticle() error = %v", err)
	}
	if !created {
		t.Errorf("first InsertArticle() created = false, want true")
	}

	id2, created2, err := repo.InsertArticle(NewArticle{URL: "https://example.com/a", Title: "Duplicate"})
	if err != nil {
		t.Fatalf("second InsertArticle() error = %v", err)
	}
	if created2 {
		t.Errorf("second InsertArticle() created = true, want false")
	}
	if id2 != id {
		t.Errorf("duplicate insert returned id %d, want %d", id2, id)
	}

	article, err := repo.GetArticle(id)
	if err != nil {
		t.Fatalf("GetArticle() error = %v", err)
	}
	if article.Title != "First" {
		t.Errorf("duplicate insert overwrote title: got %q", article.Title)
	}
}

func TestInsertArticleSetsCategory(t *testing.T) {
	repo := NewArticleRepository(newTestDB(t))

	id, _, err := repo.InsertArticle(NewArticle{URL: "https://example.com/a", Category: "tech"})
	if err != nil {
		t.Fatalf("InsertArticle() error = %v", err)
	}

	article, err := repo.GetArticle(id)
	if err != nil {
		t.Fatalf("GetArticle() error = %v", err)
	}
	if article.Category != "tech" {
		t.Errorf("Category = %q, want %q", article.Category, "tech")
	}
}

func TestNewArticleStartsUnprocessed(t *testing.T) {
	repo := NewArticleRepository(newTestDB(t))
	id := insertTestArticle(t, repo, "https://example.com/a")

	article, err := repo.GetArticle(id)
	if err != nil {
		t.Fatalf("GetArticle() error = %v", err)
	}

	if article.Processed || article.InProgress {
		t.Errorf("new article flags = processed:%v in_progress:%v, want both false", article.Processed, article.InProgress)
	}
	if article.FailureCount != 0 {
		t.Errorf("FailureCount = %d, want 0", article.FailureCount)
	}
	if article.LastError != "" || article.ProcessedAt != nil || article.ClaimedAt != nil {
		t.Errorf("new article has stale processing state: %+v", article)
	}
}

func TestClaimEligible(t *testing.T) {
	repo := NewArticleRepository(newTestDB(t))

	var ids []int64
	for i := range 5 {
		ids = append(ids, insertTestArticle(t, repo, fmt.Sprintf("https://example.com/%d", i)))
	}

	claimed, err := repo.ClaimEligible(3, 3)
	if err != nil {
		t.Fatalf("ClaimEligible() error = %v", err)
	}
	if len(claimed) != 3 {
		t.Fatalf("ClaimEligible() returned %d ids, want 3", len(claimed))
	}
	for i, id := range claimed {
		if id != ids[i] {
			t.Errorf("claimed[%d] = %d, want %d (ascending id order)", i, id, ids[i])
		}
	}

	for _, id := range claimed {
		article, err := repo.GetArticle(id)
		if err != nil {
			t.Fatalf("GetArticle() error = %v", err)
		}
		if !article.InProgress {
			t.Errorf("article %d not marked in progress after claim", id)
		}
		if article.ClaimedAt == nil {
			t.Errorf("article %d has no claim timestamp", id)
		}
	}

	// A second claim never hands out the same articles.
	rest, err := repo.ClaimEligible(10, 3)
	if err != nil {
		t.Fatalf("second ClaimEligible() error = %v", err)
	}
	if len(rest) != 2 {
		t.Fatalf("second ClaimEligible() returned %d ids, want 2", len(rest))
	}
	for _, id := range rest {
		if id == claimed[0] || id == claimed[1] || id == claimed[2] {
			t.Errorf("article %d claimed twice", id)
		}
	}
}

func TestClaimEligibleSkipsExhausted(t *testing.T) {
	repo := NewArticleRepository(newTestDB(t))

	exhausted := insertTestArticle(t, repo, "https://example.com/exhausted")
	fresh := insertTestArticle(t, repo, "https://example.com/fresh")

	for range 3 {
		if err := repo.RecordFailure(exhausted, "llm timeout"); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}

	claimed, err := repo.ClaimEligible(10, 3)
	if err != nil {
		t.Fatalf("ClaimEligible() error = %v", err)
	}
	if len(claimed) != 1 || claimed[0] != fresh {
		t.Errorf("ClaimEligible() = %v, want [%d]", claimed, fresh)
	}
}

func TestSelectEligibleIsReadOnly(t *testing.T) {
	repo := NewArticleRepository(newTestDB(t))
	id := insertTestArticle(t, repo, "https://example.com/a")

	selected, err := repo.SelectEligible(10, 3)
	if err != nil {
		t.Fatalf("SelectEligible() error = %v", err)
	}
	if len(selected) != 1 || selected[0] != id {
		t.Fatalf("SelectEligible() = %v, want [%d]", selected, id)
	}

	article, err := repo.GetArticle(id)
	if err != nil {
		t.Fatalf("GetArticle() error = %v", err)
	}
	if article.InProgress {
		t.Errorf("SelectEligible flipped in_progress")
	}
}

func TestRecordSuccessPreservesFailureCount(t *testing.T) {
	repo := NewArticleRepository(newTestDB(t))
	id := insertTestArticle(t, repo, "https://example.com/a")

	for range 2 {
		if err := repo.MarkInProgress(id); err != nil {
			t.Fatalf("MarkInProgress() error = %v", err)
		}
		if err := repo.RecordFailure(id, "malformed response"); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}

	if err := repo.MarkInProgress(id); err != nil {
		t.Fatalf("MarkInProgress() error = %v", err)
	}

	processedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.RecordSuccess(id, processedAt); err != nil {
		t.Fatalf("RecordSuccess() error = %v", err)
	}

	article, err := repo.GetArticle(id)
	if err != nil {
		t.Fatalf("GetArticle() error = %v", err)
	}

	if !article.Processed || article.InProgress {
		t.Errorf("flags after success = processed:%v in_progress:%v", article.Processed, article.InProgress)
	}
	if article.FailureCount != 2 {
		t.Errorf("FailureCount = %d, want 2 (audit counter survives success)", article.FailureCount)
	}
	if article.LastError != "" {
		t.Errorf("LastError = %q, want cleared", article.LastError)
	}
	if article.ProcessedAt == nil || !article.ProcessedAt.Equal(processedAt) {
		t.Errorf("ProcessedAt = %v, want %v", article.ProcessedAt, processedAt)
	}
	if article.ClaimedAt != nil {
		t.Errorf("ClaimedAt = %v, want nil after success", article.ClaimedAt)
	}
}

func TestRecordFailure(t *testing.T) {
	repo := NewArticleRepository(newTestDB(t))
	id := insertTestArticle(t, repo, "https://example.com/a")

	if err := repo.MarkInProgress(id); err != nil {
		t.Fatalf("MarkInProgress() error = %v", err)
	}
	if err := repo.RecordFailure(id, "llm returned malformed JSON"); err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}

	article, err := repo.GetArticle(id)
	if err != nil {
		t.Fatalf("GetArticle() error = %v", err)
	}

	if article.Processed || article.InProgress {
		t.Errorf("flags after failure = processed:%v in_progress:%v, want both false", article.Processed, article.InProgress)
	}
	if article.FailureCount != 1 {
		t.Errorf("FailureCount = %d, want 1", article.FailureCount)
	}
	if article.LastError != "llm returned malformed JSON" {
		t.Errorf("LastError = %q", article.LastError)
	}
	if article.ClaimedAt != nil {
		t.Errorf("ClaimedAt = %v, want nil after failure", article.ClaimedAt)
	}
}

func TestRecordFailureTruncatesMessage(t *testing.T) {
	repo := NewArticleRepository(newTestDB(t))
	id := insertTestArticle(t, repo, "https://example.com/a")

	if err := repo.RecordFailure(id, strings.Repeat("x", 2000)); err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}

	article, err := repo.GetArticle(id)
	if err != nil {
		t.Fatalf("GetArticle() error = %v", err)
	}
	if len(article.LastError) != lastErrorMaxLen {
		t.Errorf("stored error length = %d, want %d", len(article.LastError), lastErrorMaxLen)
	}
}

func TestRecordFailureTruncatesMultibyteMessage(t *testing.T) {
	repo := NewArticleRepository(newTestDB(t))
	id := insertTestArticle(t, repo, "https://example.com/a")

	if err := repo.RecordFailure(id, strings.Repeat("数据库错误", 200)); err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}

	article, err := repo.GetArticle(id)
	if err != nil {
		t.Fatalf("GetArticle() error = %v", err)
	}
	if !utf8.ValidString(article.LastError) {
		t.Error("stored error is not valid UTF-8")
	}
	if got := utf8.RuneCountInString(article.LastError); got != lastErrorMaxLen {
		t.Errorf("stored error rune count = %d, want %d", got, lastErrorMaxLen)
	}
}

func TestMarkInProgressIdempotent(t *testing.T) {
	repo := NewArticleRepository(newTestDB(t))
	db := repo.(*articleRepository).db
	id := insertTestArticle(t, repo, "https://example.com/a")

	if err := repo.MarkInProgress(id); err != nil {
		t.Fatalf("MarkInProgress() error = %v", err)
	}

	// Backdate so a second mark with a later clock would be visible.
	original := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)
	if _, err := db.Exec(`UPDATE articles SET claimed_at = ? WHERE id = ?`, original, id); err != nil {
		t.Fatalf("failed to backdate claim: %v", err)
	}

	if err := repo.MarkInProgress(id); err != nil {
		t.Fatalf("second MarkInProgress() error = %v", err)
	}

	article, err := repo.GetArticle(id)
	if err != nil {
		t.Fatalf("GetArticle() error = %v", err)
	}
	if article.ClaimedAt == nil || !article.ClaimedAt.Equal(original) {
		t.Errorf("ClaimedAt = %v, want original %v", article.ClaimedAt, original)
	}
}

func TestReset(t *testing.T) {
	repo := NewArticleRepository(newTestDB(t))
	id := insertTestArticle(t, repo, "https://example.com/a")

	for range 3 {
		if err := repo.RecordFailure(id, "boom"); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}

	claimed, err := repo.ClaimEligible(10, 3)
	if err != nil {
		t.Fatalf("ClaimEligible() error = %v", err)
	}
	if len(claimed) != 0 {
		t.Fatalf("exhausted article still eligible: %v", claimed)
	}

	if err := repo.Reset(id); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	article, err := repo.GetArticle(id)
	if err != nil {
		t.Fatalf("GetArticle() error = %v", err)
	}
	if article.FailureCount != 0 || article.LastError != "" || article.Processed || article.InProgress {
		t.Errorf("article not fully reset: %+v", article)
	}

	claimed, err = repo.ClaimEligible(10, 3)
	if err != nil {
		t.Fatalf("ClaimEligible() after reset error = %v", err)
	}
	if len(claimed) != 1 || claimed[0] != id {
		t.Errorf("ClaimEligible() after reset = %v, want [%d]", claimed, id)
	}
}

func TestReapStaleInProgress(t *testing.T) {
	repo := NewArticleRepository(newTestDB(t))
	db := repo.(*articleRepository).db

	stale := insertTestArticle(t, repo, "https://example.com/stale")
	fresh := insertTestArticle(t, repo, "https://example.com/fresh")

	for _, id := range []int64{stale, fresh} {
		if err := repo.MarkInProgress(id); err != nil {
			t.Fatalf("MarkInProgress() error = %v", err)
		}
	}

	backdated := time.Now().UTC().Add(-2 * time.Hour)
	if _, err := db.Exec(`UPDATE articles SET claimed_at = ? WHERE id = ?`, backdated, stale); err != nil {
		t.Fatalf("failed to backdate claim: %v", err)
	}

	reaped, err := repo.ReapStaleInProgress(30 * time.Minute)
	if err != nil {
		t.Fatalf("ReapStaleInProgress() error = %v", err)
	}
	if reaped != 1 {
		t.Errorf("reaped = %d, want 1", reaped)
	}

	staleArticle, err := repo.GetArticle(stale)
	if err != nil {
		t.Fatalf("GetArticle() error = %v", err)
	}
	if staleArticle.InProgress || staleArticle.ClaimedAt != nil {
		t.Errorf("stale claim not released: %+v", staleArticle)
	}
	if staleArticle.FailureCount != 0 {
		t.Errorf("reap incremented failure count: %d", staleArticle.FailureCount)
	}

	freshArticle, err := repo.GetArticle(fresh)
	if err != nil {
		t.Fatalf("GetArticle() error = %v", err)
	}
	if !freshArticle.InProgress {
		t.Errorf("fresh claim was reaped")
	}
}

func TestGetArticleStats(t *testing.T) {
	repo := NewArticleRepository(newTestDB(t))

	processed := insertTestArticle(t, repo, "https://example.com/processed")
	insertTestArticle(t, repo, "https://example.com/pending")
	inProgress := insertTestArticle(t, repo, "https://example.com/in-progress")
	exhausted := insertTestArticle(t, repo, "https://example.com/exhausted")

	if err := repo.RecordSuccess(processed, time.Now().UTC()); err != nil {
		t.Fatalf("RecordSuccess() error = %v", err)
	}
	if err := repo.MarkInProgress(inProgress); err != nil {
		t.Fatalf("MarkInProgress() error = %v", err)
	}
	for range 3 {
		if err := repo.RecordFailure(exhausted, "boom"); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}

	stats, err := repo.GetArticleStats(3)
	if err != nil {
		t.Fatalf("GetArticleStats() error = %v", err)
	}

	want := ArticleStats{Total: 4, Processed: 1, Pending: 2, InProgress: 1, Exhausted: 1}
	if stats != want {
		t.Errorf("GetArticleStats() = %+v, want %+v", stats, want)
	}

	count, err := repo.CountExhausted(3)
	if err != nil {
		t.Fatalf("CountExhausted() error = %v", err)
	}
	if count != 1 {
		t.Errorf("CountExhausted() = %d, want 1", count)
	}
}

func TestGetProcessedArticles(t *testing.T) {
	repo := NewArticleRepository(newTestDB(t))

	old := insertTestArticle(t, repo, "https://example.com/old")
	recent := insertTestArticle(t, repo, "https://example.com/recent")
	insertTestArticle(t, repo, "https://example.com/unprocessed")

	db := repo.(*articleRepository).db
	if _, err := db.Exec(`UPDATE articles SET published_at = ? WHERE id = ?`,
		time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), old); err != nil {
		t.Fatalf("failed to set published_at: %v", err)
	}
	if _, err := db.Exec(`UPDATE articles SET published_at = ? WHERE id = ?`,
		time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), recent); err != nil {
		t.Fatalf("failed to set published_at: %v", err)
	}

	for _, id := range []int64{old, recent} {
		if err := repo.RecordSuccess(id, time.Now().UTC()); err != nil {
			t.Fatalf("RecordSuccess() error = %v", err)
		}
	}

	articles, err := repo.GetProcessedArticles(10)
	if err != nil {
		t.Fatalf("GetProcessedArticles() error = %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("GetProcessedArticles() returned %d articles, want 2", len(articles))
	}
	if articles[0].ID != recent || articles[1].ID != old {
		t.Errorf("articles not ordered newest first: got [%d %d]", articles[0].ID, articles[1].ID)
	}
}
