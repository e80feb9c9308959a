// Package sqlite persists progress in a single-file SQLite database for
// deployments without Postgres.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ecn-prep-service/internal/domain"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ProgressStore is a SQLite implementation of app.ProgressStore.
type ProgressStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*ProgressStore, error) {
	return OpenWithClock(path, time.Now)
}

// OpenWithClock allows deterministic timestamps in tests.
func OpenWithClock(path string, now func() time.Time) (*ProgressStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single writer avoids SQLITE_BUSY under concurrent saves
	db.SetMaxOpenConns(1)
	store := &ProgressStore{db: db, now: now}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *ProgressStore) Close() error {
	return s.db.Close()
}

func (s *ProgressStore) migrate() error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT UNIQUE,
			specialty TEXT,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS scores (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id),
			specialty TEXT NOT NULL,
			score INTEGER NOT NULL,
			total_questions INTEGER NOT NULL,
			time_taken INTEGER NOT NULL DEFAULT 0,
			case_title TEXT,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS badges (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id),
			badge_type TEXT NOT NULL,
			earned_at TEXT NOT NULL,
			UNIQUE (user_id, badge_type)
		);`,
		`CREATE TABLE IF NOT EXISTS ecn_simulations (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id),
			simulation_id TEXT NOT NULL,
			score REAL NOT NULL,
			max_score REAL NOT NULL,
			percentage REAL NOT NULL,
			duration INTEGER NOT NULL,
			passed INTEGER NOT NULL,
			grade TEXT NOT NULL,
			simulation_data TEXT,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scores_specialty ON scores(specialty);`,
		`CREATE INDEX IF NOT EXISTS idx_ecn_simulations_user ON ecn_simulations(user_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *ProgressStore) SaveQuizScore(ctx context.Context, user, specialty string, score, total, elapsedSeconds int) error {
	return s.insertScore(ctx, user, specialty, score, total, elapsedSeconds, nil)
}

func (s *ProgressStore) SaveClinicalCaseScore(ctx context.Context, user, specialty, caseTitle string, percentage float64, totalSteps, _ int) error {
	return s.insertScore(ctx, user, specialty, int(percentage), totalSteps, 0, &caseTitle)
}

func (s *ProgressStore) insertScore(ctx context.Context, user, specialty string, score, total, elapsed int, caseTitle *string) error {
	return s.withUser(ctx, user, func(tx *sql.Tx, userID int64) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO scores (user_id, specialty, score, total_questions, time_taken, case_title, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			userID, specialty, score, total, elapsed, caseTitle, s.stamp())
		return err
	})
}

func (s *ProgressStore) SaveExamResult(ctx context.Context, user string, summary domain.ExamSummary, result domain.ExamScoreResult, elapsedSeconds int) error {
	payload, err := json.Marshal(struct {
		domain.ExamSummary
		Details []domain.QuestionReview `json:"details"`
	}{summary, result.Details})
	if err != nil {
		return fmt.Errorf("encode simulation: %w", err)
	}
	return s.withUser(ctx, user, func(tx *sql.Tx, userID int64) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO ecn_simulations (user_id, simulation_id, score, max_score, percentage, duration, passed, grade, simulation_data, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			userID, summary.SessionID, result.RawScore, result.MaxScore, result.Percentage,
			elapsedSeconds, result.Passed, result.Grade, string(payload), s.stamp())
		return err
	})
}

func (s *ProgressStore) GetLeaderboard(ctx context.Context, specialty string, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.username, SUM(s.score) AS total, COUNT(s.id) AS attempts
		 FROM users u JOIN scores s ON s.user_id = u.id
		 WHERE (? = '' OR s.specialty = ?)
		 GROUP BY u.username
		 ORDER BY total DESC, attempts ASC, u.username ASC
		 LIMIT ?`, specialty, specialty, sqlLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.User, &e.AggregateScore, &e.AttemptCount); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *ProgressStore) GetExamLeaderboard(ctx context.Context, limit int) ([]domain.ExamLeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.username, MAX(e.percentage) AS best, AVG(e.percentage) AS avg, COUNT(e.id)
		 FROM users u JOIN ecn_simulations e ON e.user_id = u.id
		 GROUP BY u.username
		 ORDER BY best DESC, avg DESC, u.username ASC
		 LIMIT ?`, sqlLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ExamLeaderboardEntry
	for rows.Next() {
		var e domain.ExamLeaderboardEntry
		if err := rows.Scan(&e.User, &e.BestPercentage, &e.AvgPercentage, &e.AttemptCount); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *ProgressStore) GetUserExamStats(ctx context.Context, user string) (domain.ExamStats, error) {
	var st domain.ExamStats
	var avgDuration float64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(e.id),
		        COALESCE(AVG(e.percentage), 0),
		        COALESCE(MAX(e.percentage), 0),
		        COALESCE(MIN(e.percentage), 0),
		        COALESCE(AVG(e.duration), 0),
		        COALESCE(SUM(CASE WHEN e.passed THEN 1 ELSE 0 END), 0)
		 FROM ecn_simulations e JOIN users u ON u.id = e.user_id
		 WHERE u.username = ?`, user).
		Scan(&st.AttemptCount, &st.AvgPercentage, &st.BestPercentage, &st.WorstPercentage, &avgDuration, &st.PassCount)
	if err != nil {
		return domain.ExamStats{}, err
	}
	st.AvgDuration = int(avgDuration)
	return st, nil
}

func (s *ProgressStore) GetUserProgress(ctx context.Context, user string) (domain.UserProgress, error) {
	out := domain.UserProgress{User: user, BySpecialty: []domain.SpecialtyProgress{}, Timeline: []domain.DailyProgress{}}
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.specialty, AVG(s.score), COUNT(*), SUM(s.score), AVG(s.time_taken)
		 FROM scores s JOIN users u ON u.id = s.user_id
		 WHERE u.username = ?
		 GROUP BY s.specialty
		 ORDER BY AVG(s.score) DESC, s.specialty ASC`, user)
	if err != nil {
		return domain.UserProgress{}, fmt.Errorf("query progress by specialty: %w", err)
	}
	for rows.Next() {
		var sp domain.SpecialtyProgress
		if err := rows.Scan(&sp.Specialty, &sp.AvgScore, &sp.AttemptCount, &sp.TotalScore, &sp.AvgTimeSeconds); err != nil {
			rows.Close()
			return domain.UserProgress{}, err
		}
		out.BySpecialty = append(out.BySpecialty, sp)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.UserProgress{}, err
	}

	// created_at is RFC 3339 in UTC, so its first ten characters are the day.
	rows, err = s.db.QueryContext(ctx,
		`SELECT substr(s.created_at, 1, 10) AS day, AVG(s.score), COUNT(*)
		 FROM scores s JOIN users u ON u.id = s.user_id
		 WHERE u.username = ?
		 GROUP BY day
		 ORDER BY day`, user)
	if err != nil {
		return domain.UserProgress{}, fmt.Errorf("query progress timeline: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d domain.DailyProgress
		if err := rows.Scan(&d.Date, &d.AvgScore, &d.AttemptCount); err != nil {
			return domain.UserProgress{}, err
		}
		out.Timeline = append(out.Timeline, d)
	}
	return out, rows.Err()
}

func (s *ProgressStore) TotalScore(ctx context.Context, user string) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(s.score), 0)
		 FROM scores s JOIN users u ON u.id = s.user_id
		 WHERE u.username = ?`, user).Scan(&total)
	return total, err
}

func (s *ProgressStore) UserBadges(ctx context.Context, user string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT b.badge_type
		 FROM badges b JOIN users u ON u.id = b.user_id
		 WHERE u.username = ?
		 ORDER BY b.id`, user)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *ProgressStore) AwardBadge(ctx context.Context, user, badgeID string) error {
	return s.withUser(ctx, user, func(tx *sql.Tx, userID int64) error {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO badges (user_id, badge_type, earned_at) VALUES (?, ?, ?)`,
			userID, badgeID, s.stamp())
		return err
	})
}

func (s *ProgressStore) ExamRank(ctx context.Context, user string) (int, error) {
	var rank int
	err := s.db.QueryRowContext(ctx,
		`SELECT pos FROM (
			SELECT u.username AS username,
			       ROW_NUMBER() OVER (ORDER BY MAX(e.percentage) DESC, AVG(e.percentage) DESC, u.username ASC) AS pos
			FROM users u JOIN ecn_simulations e ON e.user_id = u.id
			GROUP BY u.username
		 ) WHERE username = ?`, user).Scan(&rank)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return rank, err
}

func (s *ProgressStore) withUser(ctx context.Context, user string, fn func(tx *sql.Tx, userID int64) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (username, email, created_at) VALUES (?, ?, ?)`,
		user, user+"@ecn-prep.fr", s.stamp()); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	var userID int64
	if err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE username = ?`, user).Scan(&userID); err != nil {
		return fmt.Errorf("resolve user: %w", err)
	}
	if err = fn(tx, userID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *ProgressStore) stamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// sqlLimit maps "no limit" to SQLite's -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
