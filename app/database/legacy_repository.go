package database

import (
	"fmt"
)

type legacyRepository struct {
	db *DB
}

var _ LegacyRepository = (*legacyRepository)(nil)

func NewLegacyRepository(db *DB) LegacyRepository {
	return &legacyRepository{db: db}
}

// GetLegacyRows reads the deprecated wide table in full. The table is
// small (one row per article) and read exactly once per migration run.
func (r *legacyRepository) GetLegacyRows() ([]LegacyFeedbackRow, error) {
	rows, err := r.db.Query(`
		SELECT article_id,
		       COALESCE(summary_en, ''), COALESCE(summary_zh, ''),
		       COALESCE(keywords, ''), COALESCE(questions, ''), COALESCE(discussion, '')
		FROM deepseek_feedback
		ORDER BY article_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get legacy rows: %w", err)
	}
	defer rows.Close()

	var legacy []LegacyFeedbackRow
	for rows.Next() {
		var row LegacyFeedbackRow
		err := rows.Scan(&row.ArticleID, &row.SummaryEN, &row.SummaryZH,
			&row.KeywordsJSON, &row.QuestionsJSON, &row.DiscussionJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to scan legacy row: %w", err)
		}
		legacy = append(legacy, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating legacy rows: %w", err)
	}

	return legacy, nil
}
