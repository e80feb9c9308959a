package app

import (
	"context"
	"log"
	"time"

	"ecn-prep-service/internal/domain"
)

// saveFailedWarning is surfaced to the caller when a score could not be persisted.
const saveFailedWarning = "score computed but could not be saved"

// Recorder persists finished runs and triggers the follow-ups of a successful
// save (badges, leaderboard fan-out). Persistence is best-effort: failures are
// logged and reported as a warning, never as an error.
type Recorder struct {
	store  ProgressStore
	badges *BadgeService
	hub    *LeaderboardHub
}

// NewRecorder wires the store, badge checks and leaderboard hub. hub may be nil.
func NewRecorder(store ProgressStore, hub *LeaderboardHub) *Recorder {
	return &Recorder{store: store, badges: NewBadgeService(store), hub: hub}
}

// Persisted describes what happened after scoring.
type Persisted struct {
	Saved     bool           `json:"saved"`
	Warning   string         `json:"warning,omitempty"`
	NewBadges []domain.Badge `json:"newBadges,omitempty"`
}

func (r *Recorder) recordQuiz(ctx context.Context, user, specialty string, score, total int, elapsed time.Duration) Persisted {
	err := r.store.SaveQuizScore(ctx, user, specialty, score, total, int(elapsed.Seconds()))
	if err != nil {
		log.Printf("save quiz score user=%s specialty=%s: %v", user, specialty, err)
		return Persisted{Warning: saveFailedWarning}
	}
	out := Persisted{Saved: true, NewBadges: r.badges.CheckScoreBadges(ctx, user)}
	r.publish(ctx, specialty)
	return out
}

func (r *Recorder) recordCase(ctx context.Context, user, specialty string, c domain.ClinicalCase, res domain.CaseScoreResult) Persisted {
	err := r.store.SaveClinicalCaseScore(ctx, user, specialty, c.Title, res.ScorePercentage, res.TotalSteps, res.CorrectSteps)
	if err != nil {
		log.Printf("save clinical case user=%s case=%q: %v", user, c.Title, err)
		return Persisted{Warning: saveFailedWarning}
	}
	out := Persisted{Saved: true, NewBadges: r.badges.CheckScoreBadges(ctx, user)}
	r.publish(ctx, specialty)
	return out
}

func (r *Recorder) recordExam(ctx context.Context, user string, summary domain.ExamSummary, res domain.ExamScoreResult, elapsed time.Duration) Persisted {
	err := r.store.SaveExamResult(ctx, user, summary, res, int(elapsed.Seconds()))
	if err != nil {
		log.Printf("save exam user=%s session=%s: %v", user, summary.SessionID, err)
		return Persisted{Warning: saveFailedWarning}
	}
	return Persisted{Saved: true, NewBadges: r.badges.CheckExamBadges(ctx, user)}
}

func (r *Recorder) publish(ctx context.Context, specialty string) {
	if r.hub != nil {
		r.hub.Publish(ctx, specialty)
	}
}

// Badges exposes the badge service for read paths.
func (r *Recorder) Badges() *BadgeService { return r.badges }

// Store exposes the progress store for read paths.
func (r *Recorder) Store() ProgressStore { return r.store }
