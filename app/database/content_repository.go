package database

import (
	"cmp"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lexfeed/lexfeed/app/content"
)

type contentRepository struct {
	db *DB
}

var _ ContentRepository = (*contentRepository)(nil)

func NewContentRepository(db *DB) ContentRepository {
	return &contentRepository{db: db}
}

// ApplyResponse replaces all normalized content rows for one article with
// the rows derived from a validated payload. The whole apply runs in a
// single transaction: a downstream reader observes either the previous
// complete state or the new one, never a mix.
func (r *contentRepository) ApplyResponse(articleID int64, payload *content.Payload) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, difficulty := range content.Difficulties {
		section := payload.Section(difficulty)
		if section == nil {
			return fmt.Errorf("payload is missing section %q", difficulty)
		}

		if err := upsertSummary(tx, articleID, difficulty, content.LanguageEnglish, section.Title, section.Summary); err != nil {
			return err
		}
		if err := replaceKeywords(tx, articleID, difficulty, section.Keywords); err != nil {
			return err
		}
		if err := replaceQuestions(tx, articleID, difficulty, section.Questions); err != nil {
			return err
		}
		if err := replaceBackground(tx, articleID, difficulty, section.BackgroundReading); err != nil {
			return err
		}
		if err := replaceComments(tx, articleID, difficulty, section.Perspectives); err != nil {
			return err
		}
	}

	// CN is a Chinese rendering of the hard tier, not a 4th difficulty.
	if payload.CN != nil {
		if err := upsertSummary(tx, articleID, content.DifficultyHard, content.LanguageChinese, payload.CN.Title, payload.CN.Summary); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit content for article %d: %w", articleID, err)
	}

	return nil
}

func upsertSummary(tx *sql.Tx, articleID int64, difficulty content.Difficulty, language content.Language, title, summary string) error {
	_, err := tx.Exec(`
		INSERT INTO article_summaries (article_id, difficulty, language, title, summary, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (article_id, difficulty, language) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			updated_at = excluded.updated_at
	`, articleID, string(difficulty), string(language), title, summary, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert %s/%s summary: %w", difficulty, language, err)
	}
	return nil
}

func replaceKeywords(tx *sql.Tx, articleID int64, difficulty content.Difficulty, keywords []content.Keyword) error {
	_, err := tx.Exec(`DELETE FROM keywords WHERE article_id = ? AND difficulty = ?`, articleID, string(difficulty))
	if err != nil {
		return fmt.Errorf("failed to clear %s keywords: %w", difficulty, err)
	}

	for _, keyword := range keywords {
		_, err := tx.Exec(`
			INSERT INTO keywords (article_id, difficulty, term, explanation)
			VALUES (?, ?, ?, ?)
		`, articleID, string(difficulty), keyword.Term, keyword.Explanation)
		if err != nil {
			return fmt.Errorf("failed to insert %s keyword: %w", difficulty, err)
		}
	}

	return nil
}

func replaceQuestions(tx *sql.Tx, articleID int64, difficulty content.Difficulty, questions []content.Question) error {
	// Choices first so no orphans survive if cascading is off.
	_, err := tx.Exec(`
		DELETE FROM choices WHERE question_id IN (
			SELECT id FROM questions WHERE article_id = ? AND difficulty = ?
		)
	`, articleID, string(difficulty))
	if err != nil {
		return fmt.Errorf("failed to clear %s choices: %w", difficulty, err)
	}

	_, err = tx.Exec(`DELETE FROM questions WHERE article_id = ? AND difficulty = ?`, articleID, string(difficulty))
	if err != nil {
		return fmt.Errorf("failed to clear %s questions: %w", difficulty, err)
	}

	for position, question := range questions {
		var questionID int64
		err := tx.QueryRow(`
			INSERT INTO questions (article_id, difficulty, position, question)
			VALUES (?, ?, ?, ?)
			RETURNING id
		`, articleID, string(difficulty), position, question.Question).Scan(&questionID)
		if err != nil {
			return fmt.Errorf("failed to insert %s question: %w", difficulty, err)
		}

		for _, option := range question.Options {
			isCorrect := option == question.CorrectAnswer

			// The explanation is attached to the correct choice only.
			var explanation *string
			if isCorrect && question.Explanation != "" {
				explanation = &question.Explanation
			}

			_, err := tx.Exec(`
				INSERT INTO choices (question_id, choice, is_correct, explanation)
				VALUES (?, ?, ?, ?)
			`, questionID, option, isCorrect, explanation)
			if err != nil {
				return fmt.Errorf("failed to insert choice: %w", err)
			}
		}
	}

	return nil
}

func replaceBackground(tx *sql.Tx, articleID int64, difficulty content.Difficulty, paragraphs []string) error {
	_, err := tx.Exec(`DELETE FROM background_read WHERE article_id = ? AND difficulty = ?`, articleID, string(difficulty))
	if err != nil {
		return fmt.Errorf("failed to clear %s background reading: %w", difficulty, err)
	}

	for position, paragraph := range paragraphs {
		_, err := tx.Exec(`
			INSERT INTO background_read (article_id, difficulty, position, paragraph)
			VALUES (?, ?, ?, ?)
		`, articleID, string(difficulty), position, paragraph)
		if err != nil {
			return fmt.Errorf("failed to insert %s background paragraph: %w", difficulty, err)
		}
	}

	return nil
}

func replaceComments(tx *sql.Tx, articleID int64, difficulty content.Difficulty, perspectives []content.Perspective) error {
	_, err := tx.Exec(`DELETE FROM comments WHERE article_id = ? AND difficulty = ?`, articleID, string(difficulty))
	if err != nil {
		return fmt.Errorf("failed to clear %s comments: %w", difficulty, err)
	}

	for _, perspective := range perspectives {
		_, err := tx.Exec(`
			INSERT INTO comments (article_id, difficulty, author, attitude, body)
			VALUES (?, ?, ?, ?, ?)
		`, articleID, string(difficulty), perspective.Author, strings.ToLower(perspective.Attitude), perspective.Opinion)
		if err != nil {
			return fmt.Errorf("failed to insert %s comment: %w", difficulty, err)
		}
	}

	return nil
}

// Legacy JSON blob shapes, kept private to the migrator.

type legacyKeyword struct {
	Term        string `json:"term"`
	Word        string `json:"word"`
	Explanation string `json:"explanation"`
}

type legacyQuestion struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Correct     string   `json:"correct"`
	Explanation string   `json:"explanation"`
}

type legacyDiscussion struct {
	Positive string `json:"positive"`
	Neutral  string `json:"neutral"`
	Negative string `json:"negative"`
}

// MigrateLegacyRow explodes one legacy wide row into normalized rows. The
// legacy schema had no per-difficulty granularity, so the same summary
// text is reused across every difficulty level: a lossy but documented
// upconversion. Upserts keep repeated runs convergent.
func (r *contentRepository) MigrateLegacyRow(row LegacyFeedbackRow, difficulties []content.Difficulty, languages []content.Language) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var title, titleZH string
	err = tx.QueryRow(`SELECT title, title_zh FROM articles WHERE id = ?`, row.ArticleID).Scan(&title, &titleZH)
	if err == sql.ErrNoRows {
		return fmt.Errorf("legacy row references unknown article %d", row.ArticleID)
	}
	if err != nil {
		return fmt.Errorf("failed to look up article %d: %w", row.ArticleID, err)
	}

	for _, difficulty := range difficulties {
		for _, language := range languages {
			summaryTitle, summaryText := title, row.SummaryEN
			if language == content.LanguageChinese {
				summaryTitle = cmp.Or(titleZH, title)
				summaryText = row.SummaryZH
			}

			if err := upsertSummary(tx, row.ArticleID, difficulty, language, summaryTitle, summaryText); err != nil {
				return err
			}
		}
	}

	keywords, err := decodeLegacyKeywords(row.KeywordsJSON)
	if err != nil {
		return fmt.Errorf("legacy keywords for article %d: %w", row.ArticleID, err)
	}

	questions, err := decodeLegacyQuestions(row.QuestionsJSON)
	if err != nil {
		return fmt.Errorf("legacy questions for article %d: %w", row.ArticleID, err)
	}

	perspectives, err := decodeLegacyDiscussion(row.DiscussionJSON)
	if err != nil {
		return fmt.Errorf("legacy discussion for article %d: %w", row.ArticleID, err)
	}

	for _, difficulty := range difficulties {
		if err := replaceKeywords(tx, row.ArticleID, difficulty, keywords); err != nil {
			return err
		}
		if err := replaceQuestions(tx, row.ArticleID, difficulty, questions); err != nil {
			return err
		}
		if err := replaceComments(tx, row.ArticleID, difficulty, perspectives); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration of article %d: %w", row.ArticleID, err)
	}

	return nil
}

func decodeLegacyKeywords(data string) ([]content.Keyword, error) {
	if strings.TrimSpace(data) == "" {
		return nil, nil
	}

	var raw []legacyKeyword
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode keyword list: %w", err)
	}

	keywords := make([]content.Keyword, 0, len(raw))
	for _, k := range raw {
		keywords = append(keywords, content.Keyword{
			Term:        cmp.Or(k.Term, k.Word),
			Explanation: k.Explanation,
		})
	}

	return keywords, nil
}

func decodeLegacyQuestions(data string) ([]content.Question, error) {
	if strings.TrimSpace(data) == "" {
		return nil, nil
	}

	var raw []legacyQuestion
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode question list: %w", err)
	}

	questions := make([]content.Question, 0, len(raw))
	for i, q := range raw {
		answer, ok := resolveLegacyCorrect(q.Options, q.Correct)
		if !ok {
			return nil, fmt.Errorf("question %d: correct answer %q matches no option", i+1, q.Correct)
		}

		questions = append(questions, content.Question{
			Question:      q.Question,
			Options:       q.Options,
			CorrectAnswer: answer,
			Explanation:   q.Explanation,
		})
	}

	return questions, nil
}

// resolveLegacyCorrect maps a legacy correct-answer value to the exact
// option text. Exact match wins; the letter-prefix form ("B" or "B. ...")
// is accepted only here because old dumps used it. New payloads must
// always exact-match.
func resolveLegacyCorrect(options []string, correct string) (string, bool) {
	for _, option := range options {
		if option == correct {
			return option, true
		}
	}

	trimmed := strings.TrimSpace(correct)
	if trimmed == "" {
		return "", false
	}

	letter := strings.ToUpper(trimmed)[0]
	index := int(letter - 'A')
	if index < 0 || index >= len(options) {
		return "", false
	}
	if len(trimmed) > 1 && trimmed[1] != '.' && trimmed[1] != ')' {
		return "", false
	}

	return options[index], true
}

func decodeLegacyDiscussion(data string) ([]content.Perspective, error) {
	if strings.TrimSpace(data) == "" {
		return nil, nil
	}

	var raw legacyDiscussion
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode discussion object: %w", err)
	}

	// Fixed attitude order so repeated migrations produce identical rows.
	var perspectives []content.Perspective
	for _, entry := range []struct {
		attitude string
		opinion  string
	}{
		{content.AttitudePositive, raw.Positive},
		{content.AttitudeNeutral, raw.Neutral},
		{content.AttitudeNegative, raw.Negative},
	} {
		if strings.TrimSpace(entry.opinion) == "" {
			continue
		}
		perspectives = append(perspectives, content.Perspective{
			Attitude: entry.attitude,
			Opinion:  entry.opinion,
		})
	}

	return perspectives, nil
}

func (r *contentRepository) GetSummaries(articleID int64) ([]Summary, error) {
	rows, err := r.db.Query(`
		SELECT id, article_id, difficulty, language, title, summary
		FROM article_summaries
		WHERE article_id = ?
		ORDER BY difficulty, language
	`, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get summaries: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.ArticleID, &s.Difficulty, &s.Language, &s.Title, &s.Summary); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summary rows: %w", err)
	}

	return summaries, nil
}

func (r *contentRepository) GetSummary(articleID int64, difficulty content.Difficulty, language content.Language) (*Summary, error) {
	var s Summary
	err := r.db.QueryRow(`
		SELECT id, article_id, difficulty, language, title, summary
		FROM article_summaries
		WHERE article_id = ? AND difficulty = ? AND language = ?
	`, articleID, string(difficulty), string(language)).Scan(&s.ID, &s.ArticleID, &s.Difficulty, &s.Language, &s.Title, &s.Summary)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	return &s, nil
}

func (r *contentRepository) GetKeywords(articleID int64, difficulty content.Difficulty) ([]Keyword, error) {
	rows, err := r.db.Query(`
		SELECT id, article_id, difficulty, term, explanation
		FROM keywords
		WHERE article_id = ? AND difficulty = ?
		ORDER BY id
	`, articleID, string(difficulty))
	if err != nil {
		return nil, fmt.Errorf("failed to get keywords: %w", err)
	}
	defer rows.Close()

	var keywords []Keyword
	for rows.Next() {
		var k Keyword
		if err := rows.Scan(&k.ID, &k.ArticleID, &k.Difficulty, &k.Term, &k.Explanation); err != nil {
			return nil, fmt.Errorf("failed to scan keyword row: %w", err)
		}
		keywords = append(keywords, k)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating keyword rows: %w", err)
	}

	return keywords, nil
}

// GetQuestions returns questions in payload order with their choices.
func (r *contentRepository) GetQuestions(articleID int64, difficulty content.Difficulty) ([]Question, error) {
	rows, err := r.db.Query(`
		SELECT id, article_id, difficulty, position, question
		FROM questions
		WHERE article_id = ? AND difficulty = ?
		ORDER BY position
	`, articleID, string(difficulty))
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	defer rows.Close()

	var questions []Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.ArticleID, &q.Difficulty, &q.Position, &q.Question); err != nil {
			return nil, fmt.Errorf("failed to scan question row: %w", err)
		}
		questions = append(questions, q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating question rows: %w", err)
	}

	for i := range questions {
		choices, err := r.getChoices(questions[i].ID)
		if err != nil {
			return nil, err
		}
		questions[i].Choices = choices
	}

	return questions, nil
}

func (r *contentRepository) getChoices(questionID int64) ([]Choice, error) {
	rows, err := r.db.Query(`
		SELECT id, question_id, choice, is_correct, explanation
		FROM choices
		WHERE question_id = ?
		ORDER BY id
	`, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get choices: %w", err)
	}
	defer rows.Close()

	var choices []Choice
	for rows.Next() {
		var c Choice
		if err := rows.Scan(&c.ID, &c.QuestionID, &c.Choice, &c.IsCorrect, &c.Explanation); err != nil {
			return nil, fmt.Errorf("failed to scan choice row: %w", err)
		}
		choices = append(choices, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating choice rows: %w", err)
	}

	return choices, nil
}

func (r *contentRepository) GetBackground(articleID int64, difficulty content.Difficulty) ([]BackgroundParagraph, error) {
	rows, err := r.db.Query(`
		SELECT id, article_id, difficulty, position, paragraph
		FROM background_read
		WHERE article_id = ? AND difficulty = ?
		ORDER BY position
	`, articleID, string(difficulty))
	if err != nil {
		return nil, fmt.Errorf("failed to get background reading: %w", err)
	}
	defer rows.Close()

	var paragraphs []BackgroundParagraph
	for rows.Next() {
		var p BackgroundParagraph
		if err := rows.Scan(&p.ID, &p.ArticleID, &p.Difficulty, &p.Position, &p.Paragraph); err != nil {
			return nil, fmt.Errorf("failed to scan background row: %w", err)
		}
		paragraphs = append(paragraphs, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating background rows: %w", err)
	}

	return paragraphs, nil
}

func (r *contentRepository) GetComments(articleID int64, difficulty content.Difficulty) ([]Comment, error) {
	rows, err := r.db.Query(`
		SELECT id, article_id, difficulty, author, attitude, body
		FROM comments
		WHERE article_id = ? AND difficulty = ?
		ORDER BY id
	`, articleID, string(difficulty))
	if err != nil {
		return nil, fmt.Errorf("failed to get comments: %w", err)
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.ArticleID, &c.Difficulty, &c.Author, &c.Attitude, &c.Body); err != nil {
			return nil, fmt.Errorf("failed to scan comment row: %w", err)
		}
		comments = append(comments, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comment rows: %w", err)
	}

	return comments, nil
}
