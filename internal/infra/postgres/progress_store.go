package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ecn-prep-service/internal/domain"
)

// emailDomain completes the placeholder address of auto-created users.
const emailDomain = "@ecn-prep.fr"

// ProgressStore persists scores, simulations and badges in Postgres.
// Users are created on their first write.
type ProgressStore struct {
	pool *pgxpool.Pool
}

func NewProgressStore(pool *pgxpool.Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

func (s *ProgressStore) SaveQuizScore(ctx context.Context, user, specialty string, score, total, elapsedSeconds int) error {
	return s.insertScore(ctx, user, specialty, score, total, elapsedSeconds, nil)
}

func (s *ProgressStore) SaveClinicalCaseScore(ctx context.Context, user, specialty, caseTitle string, percentage float64, totalSteps, _ int) error {
	return s.insertScore(ctx, user, specialty, int(percentage), totalSteps, 0, &caseTitle)
}

func (s *ProgressStore) insertScore(ctx context.Context, user, specialty string, score, total, elapsed int, caseTitle *string) error {
	return s.withUser(ctx, user, func(tx pgx.Tx, userID int) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO scores (user_id, specialty, score, total_questions, time_taken, case_title)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			userID, specialty, score, total, elapsed, caseTitle)
		if err != nil {
			return fmt.Errorf("insert score: %w", err)
		}
		return nil
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
	return s.withUser(ctx, user, func(tx pgx.Tx, userID int) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO ecn_simulations
				(user_id, simulation_id, score, max_score, percentage, duration, passed, grade, simulation_data)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			userID, summary.SessionID, result.RawScore, result.MaxScore, result.Percentage,
			elapsedSeconds, result.Passed, result.Grade, payload)
		if err != nil {
			return fmt.Errorf("insert simulation: %w", err)
		}
		return nil
	})
}

func (s *ProgressStore) GetLeaderboard(ctx context.Context, specialty string, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.username, COALESCE(SUM(s.score), 0) AS total, COUNT(s.id) AS attempts
		FROM users u
		JOIN scores s ON s.user_id = u.id
		WHERE ($1 = '' OR s.specialty = $1)
		GROUP BY u.username
		ORDER BY total DESC, attempts ASC, u.username ASC
		LIMIT NULLIF($2, 0)`, specialty, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
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
	rows, err := s.pool.Query(ctx, `
		SELECT u.username,
		       MAX(e.percentage)::float8 AS best,
		       AVG(e.percentage)::float8 AS avg,
		       COUNT(e.id) AS attempts
		FROM users u
		JOIN ecn_simulations e ON e.user_id = u.id
		GROUP BY u.username
		ORDER BY best DESC, avg DESC, u.username ASC
		LIMIT NULLIF($1, 0)`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query exam leaderboard: %w", err)
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
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(e.id),
		       COALESCE(AVG(e.percentage), 0)::float8,
		       COALESCE(MAX(e.percentage), 0)::float8,
		       COALESCE(MIN(e.percentage), 0)::float8,
		       COALESCE(AVG(e.duration), 0)::int,
		       COUNT(e.id) FILTER (WHERE e.passed)
		FROM ecn_simulations e
		JOIN users u ON u.id = e.user_id
		WHERE u.username = $1`, user).
		Scan(&st.AttemptCount, &st.AvgPercentage, &st.BestPercentage, &st.WorstPercentage, &st.AvgDuration, &st.PassCount)
	if err != nil {
		return domain.ExamStats{}, fmt.Errorf("query exam stats: %w", err)
	}
	return st, nil
}

func (s *ProgressStore) GetUserProgress(ctx context.Context, user string) (domain.UserProgress, error) {
	out := domain.UserProgress{User: user, BySpecialty: []domain.SpecialtyProgress{}, Timeline: []domain.DailyProgress{}}
	rows, err := s.pool.Query(ctx, `
		SELECT s.specialty,
		       AVG(s.score::float8),
		       COUNT(*),
		       SUM(s.score)::int,
		       AVG(s.time_taken)::float8
		FROM scores s
		JOIN users u ON u.id = s.user_id
		WHERE u.username = $1
		GROUP BY s.specialty
		ORDER BY 2 DESC, s.specialty ASC`, user)
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

	rows, err = s.pool.Query(ctx, `
		SELECT to_char(s.created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
		       AVG(s.score::float8),
		       COUNT(*)
		FROM scores s
		JOIN users u ON u.id = s.user_id
		WHERE u.username = $1
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
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(s.score), 0)
		FROM scores s JOIN users u ON u.id = s.user_id
		WHERE u.username = $1`, user).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("query total score: %w", err)
	}
	return total, nil
}

func (s *ProgressStore) UserBadges(ctx context.Context, user string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT b.badge_type
		FROM badges b JOIN users u ON u.id = b.user_id
		WHERE u.username = $1
		ORDER BY b.earned_at, b.id`, user)
	if err != nil {
		return nil, fmt.Errorf("query badges: %w", err)
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
	return s.withUser(ctx, user, func(tx pgx.Tx, userID int) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO badges (user_id, badge_type) VALUES ($1, $2)
			ON CONFLICT (user_id, badge_type) DO NOTHING`, userID, badgeID)
		if err != nil {
			return fmt.Errorf("insert badge: %w", err)
		}
		return nil
	})
}

func (s *ProgressStore) ExamRank(ctx context.Context, user string) (int, error) {
	var rank int
	err := s.pool.QueryRow(ctx, `
		SELECT pos FROM (
			SELECT u.username,
			       ROW_NUMBER() OVER (ORDER BY MAX(e.percentage) DESC, AVG(e.percentage) DESC, u.username ASC) AS pos
			FROM users u JOIN ecn_simulations e ON e.user_id = u.id
			GROUP BY u.username
		) ranked WHERE username = $1`, user).Scan(&rank)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query exam rank: %w", err)
	}
	return rank, nil
}

// withUser runs fn in a transaction after resolving (or creating) the user row.
func (s *ProgressStore) withUser(ctx context.Context, user string, fn func(tx pgx.Tx, userID int) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var userID int
	err = tx.QueryRow(ctx, `
		INSERT INTO users (username, email) VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE SET username = EXCLUDED.username
		RETURNING id`, user, user+emailDomain).Scan(&userID)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	if err := fn(tx, userID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func clampLimit(limit int) int {
	if limit < 0 {
		return 0
	}
	return limit
}
