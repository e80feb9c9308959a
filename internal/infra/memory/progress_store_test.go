package memory

import (
	"context"
	"testing"
	"time"

	"ecn-prep-service/internal/domain"
)

func TestProgressStoreLeaderboard(t *testing.T) {
	ctx := context.Background()
	store := NewProgressStore()

	_ = store.SaveQuizScore(ctx, "alice", "cardiologie", 8, 10, 120)
	_ = store.SaveQuizScore(ctx, "alice", "neurologie", 3, 10, 90)
	_ = store.SaveQuizScore(ctx, "bob", "cardiologie", 9, 10, 60)
	_ = store.SaveClinicalCaseScore(ctx, "carol", "cardiologie", "Douleur thoracique", 66.7, 3, 2)

	all, err := store.GetLeaderboard(ctx, "", 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(all) != 3 || all[0].User != "carol" || all[0].AggregateScore != 66 {
		t.Fatalf("expected carol's truncated case percentage to lead, got %+v", all)
	}
	if all[1].User != "alice" || all[1].AggregateScore != 11 || all[1].AttemptCount != 2 {
		t.Fatalf("unexpected alice row %+v", all[1])
	}

	cardio, _ := store.GetLeaderboard(ctx, "cardiologie", 2)
	if len(cardio) != 2 || cardio[1].User != "bob" {
		t.Fatalf("unexpected cardiology board %+v", cardio)
	}
	if total, _ := store.TotalScore(ctx, "alice"); total != 11 {
		t.Fatalf("expected total 11, got %d", total)
	}
}

func TestProgressStoreExamStatsAndRank(t *testing.T) {
	ctx := context.Background()
	store := NewProgressStore()
	summary := domain.ExamSummary{SessionID: "ecn_1", Title: "Simulation", TotalQuestions: 120}

	_ = store.SaveExamResult(ctx, "alice", summary, domain.ExamScoreResult{Percentage: 60}, 3000)
	_ = store.SaveExamResult(ctx, "alice", summary, domain.ExamScoreResult{Percentage: 80, Passed: true}, 3600)
	_ = store.SaveExamResult(ctx, "bob", summary, domain.ExamScoreResult{Percentage: 90, Passed: true}, 2400)

	stats, err := store.GetUserExamStats(ctx, "alice")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.AttemptCount != 2 || stats.BestPercentage != 80 || stats.WorstPercentage != 60 ||
		stats.AvgPercentage != 70 || stats.AvgDuration != 3300 || stats.PassCount != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if empty, _ := store.GetUserExamStats(ctx, "nobody"); empty.AttemptCount != 0 {
		t.Fatalf("expected empty stats, got %+v", empty)
	}

	board, _ := store.GetExamLeaderboard(ctx, 10)
	if len(board) != 2 || board[0].User != "bob" || board[1].AvgPercentage != 70 {
		t.Fatalf("unexpected exam board %+v", board)
	}
	if rank, _ := store.ExamRank(ctx, "alice"); rank != 2 {
		t.Fatalf("expected alice ranked 2, got %d", rank)
	}
	if rank, _ := store.ExamRank(ctx, "nobody"); rank != 0 {
		t.Fatalf("expected no rank, got %d", rank)
	}
}

func TestProgressStoreBadgesAreIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewProgressStore()
	_ = store.AwardBadge(ctx, "alice", "debutant")
	_ = store.AwardBadge(ctx, "alice", "debutant")
	badges, _ := store.UserBadges(ctx, "alice")
	if len(badges) != 1 {
		t.Fatalf("expected one badge, got %v", badges)
	}
}

func TestProgressStoreUserProgress(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 14, 23, 30, 0, 0, time.UTC)
	store := NewProgressStoreWithClock(func() time.Time { return now })

	_ = store.SaveQuizScore(ctx, "alice", "cardiologie", 8, 10, 120)
	_ = store.SaveQuizScore(ctx, "alice", "neurologie", 3, 10, 90)
	now = now.Add(time.Hour)
	_ = store.SaveQuizScore(ctx, "alice", "cardiologie", 6, 10, 60)
	_ = store.SaveQuizScore(ctx, "bob", "cardiologie", 10, 10, 30)

	p, err := store.GetUserProgress(ctx, "alice")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if len(p.BySpecialty) != 2 || len(p.Timeline) != 2 {
		t.Fatalf("unexpected progress %+v", p)
	}
	cardio := p.BySpecialty[0]
	if cardio.Specialty != "cardiologie" || cardio.AvgScore != 7 || cardio.AttemptCount != 2 || cardio.TotalScore != 14 || cardio.AvgTimeSeconds != 90 {
		t.Fatalf("unexpected cardiology row %+v", cardio)
	}
	if p.Timeline[0].Date != "2025-03-14" || p.Timeline[0].AvgScore != 5.5 || p.Timeline[0].AttemptCount != 2 {
		t.Fatalf("unexpected first day %+v", p.Timeline[0])
	}
	if p.Timeline[1].Date != "2025-03-15" || p.Timeline[1].AvgScore != 6 {
		t.Fatalf("unexpected second day %+v", p.Timeline[1])
	}

	empty, _ := store.GetUserProgress(ctx, "nobody")
	if empty.BySpecialty == nil || len(empty.BySpecialty) != 0 || len(empty.Timeline) != 0 {
		t.Fatalf("expected empty non-nil progress, got %+v", empty)
	}
}
