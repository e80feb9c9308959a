package app

import (
	"context"

	"ecn-prep-service/internal/domain"
)

// QuestionBank is the read-only question and case inventory.
type QuestionBank interface {
	ListSpecialties() []string
	SampleQuestions(specialty string, n int) []domain.Question
	GetClinicalCase(specialty string) (domain.ClinicalCase, bool)
}

// BankRepository resolves the current bank (from cache/backing store).
type BankRepository interface {
	GetBank(ctx context.Context) (QuestionBank, error)
}

// SessionRepository abstracts where per-user sessions live (in-memory, Redis, etc).
type SessionRepository interface {
	GetOrCreate(user string) *Session
	Get(user string) (*Session, bool)
	DeleteIfEmpty(user string)
}

// ProgressStore persists scores and serves leaderboards. A nil error means the
// write succeeded.
type ProgressStore interface {
	SaveQuizScore(ctx context.Context, user, specialty string, score, total, elapsedSeconds int) error
	SaveClinicalCaseScore(ctx context.Context, user, specialty, caseTitle string, percentage float64, totalSteps, correctSteps int) error
	SaveExamResult(ctx context.Context, user string, summary domain.ExamSummary, result domain.ExamScoreResult, elapsedSeconds int) error

	// GetLeaderboard aggregates quiz scores; an empty specialty means all of them.
	GetLeaderboard(ctx context.Context, specialty string, limit int) ([]domain.LeaderboardEntry, error)
	GetExamLeaderboard(ctx context.Context, limit int) ([]domain.ExamLeaderboardEntry, error)
	GetUserExamStats(ctx context.Context, user string) (domain.ExamStats, error)
	// GetUserProgress breaks a user's quiz and case scores down by specialty
	// and by day.
	GetUserProgress(ctx context.Context, user string) (domain.UserProgress, error)

	TotalScore(ctx context.Context, user string) (int, error)
	UserBadges(ctx context.Context, user string) ([]string, error)
	AwardBadge(ctx context.Context, user, badgeID string) error
	// ExamRank is the 1-based position of the user's best simulation, 0 when none.
	ExamRank(ctx context.Context, user string) (int, error)
}

// FixedBank serves a bank that never changes.
type FixedBank struct {
	Bank QuestionBank
}

func (f FixedBank) GetBank(_ context.Context) (QuestionBank, error) {
	return f.Bank, nil
}
