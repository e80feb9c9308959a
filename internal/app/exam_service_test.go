package app_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"ecn-prep-service/internal/domain"
)

func TestExamSimulationManualFinish(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, testBank())

	status, err := env.exams.Start(ctx, "alice")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if status.TotalQuestions != 3 || len(status.Sections) != 4 || status.Sections[0].Len() != 3 {
		t.Fatalf("unexpected session layout %+v", status)
	}
	if status.Remaining != time.Hour || status.CurrentSection != 0 || status.NextBreak != 20*time.Minute {
		t.Fatalf("unexpected clock view %+v", status)
	}

	session, err := env.exams.Session(ctx, "alice")
	if err != nil {
		t.Fatalf("session failed: %v", err)
	}
	for i, q := range session.Questions {
		if _, err := env.exams.Answer(ctx, "alice", i, domain.SingleAnswer(q.CorrectTexts()[0])); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
	}
	if _, err := env.exams.Answer(ctx, "alice", 3, domain.SingleAnswer("x")); !errors.Is(err, domain.ErrQuestionOutOfRange) {
		t.Fatalf("expected ErrQuestionOutOfRange, got %v", err)
	}

	env.clock.Advance(25 * time.Minute)
	status, _ = env.exams.Status(ctx, "alice")
	if status.Answered != 3 || status.Sections[0].Answered != 3 || status.CurrentSection != 1 || status.NextBreak != 15*time.Minute {
		t.Fatalf("unexpected progress %+v", status)
	}

	out, err := env.exams.Finish(ctx, "alice")
	if err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	if out.Result.Percentage != 100 || !out.Result.Passed || out.Result.Grade != "Excellent" || out.TimedOut {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if !out.Saved {
		t.Fatalf("expected saved outcome, got %+v", out.Persisted)
	}
	ids := map[string]bool{}
	for _, b := range out.NewBadges {
		ids[b.ID] = true
	}
	if !ids["simulateur"] || !ids["excellent"] || !ids["podium"] || ids["marathonien"] {
		t.Fatalf("unexpected exam badges %+v", out.NewBadges)
	}

	again, err := env.exams.Result(ctx, "alice")
	if err != nil || again.Summary.SessionID != out.Summary.SessionID {
		t.Fatalf("expected stored result, got %+v (%v)", again, err)
	}
	if _, err := env.exams.Answer(ctx, "alice", 0, domain.SingleAnswer("x")); !errors.Is(err, domain.ErrRunFinished) {
		t.Fatalf("expected ErrRunFinished, got %v", err)
	}
}

func TestExamSimulationDeadlineForcesFinish(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, testBank())

	if _, err := env.exams.Start(ctx, "bob"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	session, _ := env.exams.Session(ctx, "bob")
	_, _ = env.exams.Answer(ctx, "bob", 0, domain.SingleAnswer(session.Questions[0].CorrectTexts()[0]))
	_, _ = env.exams.Answer(ctx, "bob", 1, domain.SingleAnswer("Wrong"))

	env.clock.Advance(time.Hour)
	if _, err := env.exams.Answer(ctx, "bob", 2, domain.SingleAnswer("Wrong")); !errors.Is(err, domain.ErrRunFinished) {
		t.Fatalf("expected late answer to be refused, got %v", err)
	}
	status, err := env.exams.Status(ctx, "bob")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !status.Finished || status.Remaining != 0 || status.Outcome == nil || !status.Outcome.TimedOut {
		t.Fatalf("expected forced finish, got %+v", status)
	}
	// 2 - 0.5 + 0 over 6
	want := 1.5 / 6 * 100
	if math.Abs(status.Outcome.Result.Percentage-want) > 1e-9 || status.Outcome.Result.Passed {
		t.Fatalf("expected %.2f%% not passed, got %+v", want, status.Outcome.Result)
	}
	stats, _ := env.store.GetUserExamStats(ctx, "bob")
	if stats.AttemptCount != 1 || stats.AvgDuration != 3600 {
		t.Fatalf("expected one saved simulation, got %+v", stats)
	}
}

func TestExamAbandonDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, testBank())

	_, _ = env.exams.Start(ctx, "carol")
	env.exams.Abandon(ctx, "carol")
	if _, err := env.exams.Status(ctx, "carol"); err == nil {
		t.Fatalf("expected no running exam after abandon")
	}
	stats, _ := env.store.GetUserExamStats(ctx, "carol")
	if stats.AttemptCount != 0 {
		t.Fatalf("abandon must not save, got %+v", stats)
	}
}

func TestExamEmptyBankCreatesNoSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	if _, err := env.exams.Start(ctx, "dave"); !errors.Is(err, domain.ErrEmptySession) {
		t.Fatalf("expected ErrEmptySession, got %v", err)
	}
	if _, ok := env.sessions.Get("dave"); ok {
		t.Fatalf("expected no session to be created")
	}
}
