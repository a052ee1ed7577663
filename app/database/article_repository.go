package database

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// lastErrorMaxLen bounds stored error messages so repeated failures do not
// grow the database without limit.
const lastErrorMaxLen = 500

type articleRepository struct {
	db *DB
}

var _ ArticleRepository = (*articleRepository)(nil)

func NewArticleRepository(db *DB) ArticleRepository {
	return &articleRepository{db: db}
}

// InsertArticle stores an ingested article. The source URL is the dedup
// key; inserting a known URL is a no-op. Returns the article id and
// whether a new row was created.
func (r *articleRepository) InsertArticle(article NewArticle) (int64, bool, error) {
	result, err := r.db.Exec(`
		INSERT INTO articles (url, title, title_zh, description, content, published_at, crawled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (url) DO NOTHING
	`, article.URL, article.Title, article.TitleZH, article.Description, article.Content,
		article.PublishedAt, time.Now().UTC())
	if err != nil {
		return 0, false, fmt.Errorf("failed to insert article: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	var id int64
	err = r.db.QueryRow(`SELECT id FROM articles WHERE url = ?`, article.URL).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up article id: %w", err)
	}

	if affected > 0 && article.Category != "" {
		if err := r.setCategory(id, article.Category); err != nil {
			return 0, false, err
		}
	}

	return id, affected > 0, nil
}

func (r *articleRepository) setCategory(articleID int64, category string) error {
	_, err := r.db.Exec(`INSERT INTO categories (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, category)
	if err != nil {
		return fmt.Errorf("failed to upsert category: %w", err)
	}

	_, err = r.db.Exec(`
		UPDATE articles
		SET category_id = (SELECT id FROM categories WHERE name = ?)
		WHERE id = ?
	`, category, articleID)
	if err != nil {
		return fmt.Errorf("failed to set article category: %w", err)
	}

	return nil
}

// UpdateArticleContent replaces the stored article text, typically with
// the result of readability extraction over the full page.
func (r *articleRepository) UpdateArticleContent(id int64, content string) error {
	_, err := r.db.Exec(`UPDATE articles SET content = ? WHERE id = ?`, content, id)
	if err != nil {
		return fmt.Errorf("failed to update article content: %w", err)
	}
	return nil
}

func (r *articleRepository) GetArticle(id int64) (*Article, error) {
	row := r.db.QueryRow(`
		SELECT a.id, a.url, a.title, a.title_zh, a.description, a.content,
		       COALESCE(c.name, ''), a.published_at, a.crawled_at,
		       a.processed, a.in_progress, a.failure_count,
		       COALESCE(a.last_error, ''), a.processed_at, a.claimed_at
		FROM articles a
		LEFT JOIN categories c ON c.id = a.category_id
		WHERE a.id = ?
	`, id)

	article, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}

	return article, nil
}

// GetProcessedArticles returns fully enriched articles, newest first.
func (r *articleRepository) GetProcessedArticles(limit int) ([]Article, error) {
	rows, err := r.db.Query(`
		SELECT a.id, a.url, a.title, a.title_zh, a.description, a.content,
		       COALESCE(c.name, ''), a.published_at, a.crawled_at,
		       a.processed, a.in_progress, a.failure_count,
		       COALESCE(a.last_error, ''), a.processed_at, a.claimed_at
		FROM articles a
		LEFT JOIN categories c ON c.id = a.category_id
		WHERE a.processed = 1
		ORDER BY COALESCE(a.published_at, a.crawled_at) DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get processed articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		articles = append(articles, *article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}

	return articles, nil
}

func (r *articleRepository) GetArticleCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM articles`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get article count: %w", err)
	}
	return count, nil
}

func (r *articleRepository) GetArticleStats(maxFailures int) (ArticleStats, error) {
	query, args, err := sq.Select(
		"COUNT(*) AS total",
		"SUM(CASE WHEN processed = 1 THEN 1 ELSE 0 END) AS processed",
		fmt.Sprintf("SUM(CASE WHEN processed = 0 AND failure_count < %d THEN 1 ELSE 0 END) AS pending", maxFailures),
		"SUM(CASE WHEN in_progress = 1 THEN 1 ELSE 0 END) AS in_progress",
		fmt.Sprintf("SUM(CASE WHEN processed = 0 AND failure_count >= %d THEN 1 ELSE 0 END) AS exhausted", maxFailures),
	).From("articles").ToSql()
	if err != nil {
		return ArticleStats{}, fmt.Errorf("failed to build stats query: %w", err)
	}

	var stats ArticleStats
	err = r.db.QueryRow(query, args...).Scan(&stats.Total, &stats.Processed, &stats.Pending, &stats.InProgress, &stats.Exhausted)
	if err != nil {
		return ArticleStats{}, fmt.Errorf("failed to get article stats: %w", err)
	}

	return stats, nil
}

// SelectEligible returns ids of articles eligible for processing, ordered
// ascending by id so repeated invocations iterate the backlog
// deterministically. Read-only; use ClaimEligible to also take the claim.
func (r *articleRepository) SelectEligible(limit, maxFailures int) ([]int64, error) {
	query, args, err := sq.Select("id").
		From("articles").
		Where(sq.Eq{"processed": false, "in_progress": false}).
		Where(sq.Lt{"failure_count": maxFailures}).
		OrderBy("id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build eligibility query: %w", err)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select eligible articles: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// ClaimEligible selects eligible articles and flips their in_progress flag
// in a single statement, so two overlapping invocations can never claim
// the same article.
func (r *articleRepository) ClaimEligible(limit, maxFailures int) ([]int64, error) {
	rows, err := r.db.Query(`
		UPDATE articles
		SET in_progress = 1, claimed_at = ?
		WHERE id IN (
			SELECT id FROM articles
			WHERE processed = 0 AND in_progress = 0 AND failure_count < ?
			ORDER BY id ASC
			LIMIT ?
		)
		RETURNING id
	`, time.Now().UTC(), maxFailures, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim eligible articles: %w", err)
	}
	defer rows.Close()

	ids, err := scanIDs(rows)
	if err != nil {
		return nil, err
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// MarkInProgress takes the processing claim for one article. Idempotent:
// marking an already claimed article keeps the original claim timestamp.
func (r *articleRepository) MarkInProgress(id int64) error {
	_, err := r.db.Exec(`
		UPDATE articles
		SET in_progress = 1, claimed_at = COALESCE(claimed_at, ?)
		WHERE id = ?
	`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark article in progress: %w", err)
	}
	return nil
}

// RecordSuccess is the only operation that flips processed to true. The
// failure count is preserved as a lifetime audit counter.
func (r *articleRepository) RecordSuccess(id int64, processedAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE articles
		SET processed = 1, in_progress = 0, last_error = NULL, processed_at = ?, claimed_at = NULL
		WHERE id = ?
	`, processedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to record success: %w", err)
	}
	return nil
}

func (r *articleRepository) RecordFailure(id int64, message string) error {
	// Truncate by rune, not byte, so a multi-byte message never gets cut
	// mid-character.
	if runes := []rune(message); len(runes) > lastErrorMaxLen {
		message = string(runes[:lastErrorMaxLen])
	}

	_, err := r.db.Exec(`
		UPDATE articles
		SET in_progress = 0, failure_count = failure_count + 1, last_error = ?, claimed_at = NULL
		WHERE id = ?
	`, message, id)
	if err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}
	return nil
}

// Reset returns an article to the freshly ingested state. Operator action
// for articles that hit the failure cap.
func (r *articleRepository) Reset(id int64) error {
	_, err := r.db.Exec(`
		UPDATE articles
		SET processed = 0, in_progress = 0, failure_count = 0,
		    last_error = NULL, processed_at = NULL, claimed_at = NULL
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to reset article: %w", err)
	}
	return nil
}

// ReapStaleInProgress releases claims older than the threshold. A crashed
// worker leaves in_progress stuck; nothing else ever clears it.
func (r *articleRepository) ReapStaleInProgress(olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	result, err := r.db.Exec(`
		UPDATE articles
		SET in_progress = 0, claimed_at = NULL
		WHERE in_progress = 1 AND claimed_at IS NOT NULL AND claimed_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to reap stale claims: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(affected), nil
}

func (r *articleRepository) CountExhausted(maxFailures int) (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM articles
		WHERE processed = 0 AND failure_count >= ?
	`, maxFailures).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count exhausted articles: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*Article, error) {
	var article Article
	err := row.Scan(
		&article.ID, &article.URL, &article.Title, &article.TitleZH,
		&article.Description, &article.Content, &article.Category,
		&article.PublishedAt, &article.CrawledAt,
		&article.Processed, &article.InProgress, &article.FailureCount,
		&article.LastError, &article.ProcessedAt, &article.ClaimedAt,
	)
	if err != nil {
		return nil, err
	}
	return &article, nil
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan article id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating id rows: %w", err)
	}

	return ids, nil
}
