package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/kb-advisor/backend/internal/storage/models"
	"github.com/kb-advisor/backend/pkg/logger"
)

// ErrNotFound is returned when a case does not exist.
var ErrNotFound = errors.New("case not found")

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		problem_description TEXT NOT NULL,
		solution TEXT NOT NULL,
		system_type TEXT NOT NULL DEFAULT 'Unknown',
		tags TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		effectiveness_score REAL,
		feedback_count INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_cases_system ON cases(system_type);
	CREATE INDEX IF NOT EXISTS idx_cases_created ON cases(created_at);

	CREATE TABLE IF NOT EXISTS case_feedbacks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		case_id INTEGER NOT NULL,
		rating INTEGER NOT NULL,
		resolution_method TEXT NOT NULL DEFAULT '',
		custom_solution TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		FOREIGN KEY (case_id) REFERENCES cases(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_feedbacks_case ON case_feedbacks(case_id);
	CREATE INDEX IF NOT EXISTS idx_feedbacks_created ON case_feedbacks(created_at);

	CREATE TABLE IF NOT EXISTS suggestion_log (
		id TEXT PRIMARY KEY,
		problem_text TEXT NOT NULL,
		predicted_system TEXT,
		confidence REAL,
		result_count INTEGER,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_suggestions_created ON suggestion_log(created_at);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertCase(ctx context.Context, cs *models.Case) error {
	if cs.SystemType == "" {
		cs.SystemType = models.SystemUnknown
	}
	if cs.CreatedAt.IsZero() {
		cs.CreatedAt = time.Now()
	}

	result, err := c.db.ExecContext(ctx, `
		INSERT INTO cases (problem_description, solution, system_type, tags, created_at, effectiveness_score, feedback_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cs.ProblemDescription,
		cs.Solution,
		cs.SystemType,
		cs.TagsString(),
		cs.CreatedAt.Unix(),
		cs.EffectivenessScore,
		cs.FeedbackCount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert case: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read case id: %w", err)
	}
	cs.ID = id

	logger.Debug("Case inserted", zap.Int64("case_id", id), zap.String("system", cs.SystemType))
	return nil
}

func (c *Client) GetCase(ctx context.Context, id int64) (*models.Case, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, problem_description, solution, system_type, tags, created_at, effectiveness_score, feedback_count
		FROM cases WHERE id = ?`, id)

	cs, err := scanCase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	return cs, nil
}

func (c *Client) UpdateCase(ctx context.Context, cs *models.Case) error {
	result, err := c.db.ExecContext(ctx, `
		UPDATE cases SET problem_description = ?, solution = ?, system_type = ?, tags = ?
		WHERE id = ?`,
		cs.ProblemDescription, cs.Solution, cs.SystemType, cs.TagsString(), cs.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update case: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *Client) DeleteCase(ctx context.Context, id int64) error {
	result, err := c.db.ExecContext(ctx, `DELETE FROM cases WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete case: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCases returns the full current case set, the training input for
// the learning loop.
func (c *Client) ListCases(ctx context.Context) ([]models.Case, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, problem_description, solution, system_type, tags, created_at, effectiveness_score, feedback_count
		FROM cases ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	return collectCases(rows)
}

// SearchCases filters by substring match on problem or solution text
// and optionally by system label.
func (c *Client) SearchCases(ctx context.Context, query, systemFilter string) ([]models.Case, error) {
	sqlQuery := `
		SELECT id, problem_description, solution, system_type, tags, created_at, effectiveness_score, feedback_count
		FROM cases WHERE 1=1`
	args := []interface{}{}

	if query != "" {
		sqlQuery += ` AND (problem_description LIKE ? OR solution LIKE ?)`
		like := "%" + query + "%"
		args = append(args, like, like)
	}
	if systemFilter != "" {
		sqlQuery += ` AND system_type = ? COLLATE NOCASE`
		args = append(args, systemFilter)
	}
	sqlQuery += ` ORDER BY created_at DESC`

	rows, err := c.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search cases: %w", err)
	}
	defer rows.Close()

	return collectCases(rows)
}

func (c *Client) RecentCases(ctx context.Context, limit int) ([]models.Case, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, problem_description, solution, system_type, tags, created_at, effectiveness_score, feedback_count
		FROM cases ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent cases: %w", err)
	}
	defer rows.Close()

	return collectCases(rows)
}

func (c *Client) CountCases(ctx context.Context) (int, error) {
	var count int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cases`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cases: %w", err)
	}
	return count, nil
}

func (c *Client) CountFeedback(ctx context.Context) (int, error) {
	var count int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM case_feedbacks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count feedback: %w", err)
	}
	return count, nil
}

// DashboardStats aggregates the corpus overview in a handful of
// queries.
func (c *Client) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{
		CasesBySystem: make(map[string]int),
	}

	var err error
	if stats.TotalCases, err = c.CountCases(ctx); err != nil {
		return nil, err
	}
	if stats.TotalFeedback, err = c.CountFeedback(ctx); err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, `SELECT system_type, COUNT(*) FROM cases GROUP BY system_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to count cases by system: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var system string
		var count int
		if err := rows.Scan(&system, &count); err != nil {
			return nil, fmt.Errorf("failed to scan system count: %w", err)
		}
		stats.CasesBySystem[system] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read system counts: %w", err)
	}

	var avg sql.NullFloat64
	err = c.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(effectiveness_score)
		FROM cases WHERE feedback_count > 0`).Scan(&stats.CasesWithFeedback, &avg)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize effectiveness: %w", err)
	}
	if avg.Valid {
		stats.AverageEffectiveness = avg.Float64
	}

	return stats, nil
}

// InsertFeedback records one immutable rating and folds the updated
// aggregate back onto the case row in the same transaction.
func (c *Client) InsertFeedback(ctx context.Context, fb *models.CaseFeedback, newMean float64, newCount int) error {
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now()
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO case_feedbacks (case_id, rating, resolution_method, custom_solution, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		fb.CaseID, fb.Rating, fb.ResolutionMethod, fb.CustomSolution, fb.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		fb.ID = id
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE cases SET effectiveness_score = ?, feedback_count = ? WHERE id = ?`,
		newMean, newCount, fb.CaseID,
	); err != nil {
		return fmt.Errorf("failed to update case aggregate: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit feedback: %w", err)
	}

	logger.Info("Feedback stored",
		zap.Int64("case_id", fb.CaseID),
		zap.Int("rating", fb.Rating),
		zap.Int("feedback_count", newCount),
	)
	return nil
}

func (c *Client) InsertSuggestionRecord(ctx context.Context, rec *models.SuggestionRecord) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO suggestion_log (id, problem_text, predicted_system, confidence, result_count, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ProblemText, rec.PredictedSystem, rec.Confidence, rec.ResultCount, rec.LatencyMS, rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert suggestion record: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCase(row rowScanner) (*models.Case, error) {
	var cs models.Case
	var tags string
	var createdAt int64
	var effectiveness sql.NullFloat64

	err := row.Scan(
		&cs.ID,
		&cs.ProblemDescription,
		&cs.Solution,
		&cs.SystemType,
		&tags,
		&createdAt,
		&effectiveness,
		&cs.FeedbackCount,
	)
	if err != nil {
		return nil, err
	}

	cs.SetTagsString(tags)
	cs.CreatedAt = time.Unix(createdAt, 0)
	if effectiveness.Valid {
		cs.EffectivenessScore = &effectiveness.Float64
	}
	return &cs, nil
}

func collectCases(rows *sql.Rows) ([]models.Case, error) {
	var cases []models.Case
	for rows.Next() {
		cs, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		cases = append(cases, *cs)
	}
	return cases, rows.Err()
}
