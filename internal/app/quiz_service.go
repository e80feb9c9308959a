package app

import (
	"context"
	"fmt"
	"time"

	"ecn-prep-service/internal/domain"
	"ecn-prep-service/internal/scoring"
)

// DefaultQuizLength is the number of questions of a practice quiz.
const DefaultQuizLength = 10

// QuizRun is an in-progress practice quiz over one specialty.
type QuizRun struct {
	Specialty string
	Questions []domain.Question
	Answers   []domain.Answer
	StartedAt time.Time
}

// QuizView is what a client sees of a practice run.
type QuizView struct {
	Specialty string            `json:"specialty"`
	Questions []domain.Question `json:"questions"`
	Answers   []domain.Answer   `json:"answers"`
	StartedAt time.Time         `json:"startedAt"`
}

// QuizOutcome is the result of a finished practice quiz.
type QuizOutcome struct {
	Specialty string            `json:"specialty"`
	Result    domain.QuizResult `json:"result"`
	Elapsed   time.Duration     `json:"elapsed"`
	Persisted
}

// QuizService contains the practice quiz use cases.
type QuizService struct {
	sessions SessionRepository
	banks    BankRepository
	recorder *Recorder
	now      func() time.Time
}

func NewQuizService(sessions SessionRepository, banks BankRepository, recorder *Recorder) *QuizService {
	return NewQuizServiceWithClock(sessions, banks, recorder, time.Now)
}

// NewQuizServiceWithClock is test-only for deterministic timestamps.
func NewQuizServiceWithClock(sessions SessionRepository, banks BankRepository, recorder *Recorder, now func() time.Time) *QuizService {
	return &QuizService{sessions: sessions, banks: banks, recorder: recorder, now: now}
}

// Start draws up to n questions from specialty and replaces any previous run.
func (s *QuizService) Start(ctx context.Context, user, specialty string, n int) (QuizView, error) {
	if n <= 0 {
		n = DefaultQuizLength
	}
	bank, err := s.banks.GetBank(ctx)
	if err != nil {
		return QuizView{}, err
	}
	questions := bank.SampleQuestions(specialty, n)
	if len(questions) == 0 {
		return QuizView{}, fmt.Errorf("%s: %w", specialty, domain.ErrNoQuestions)
	}

	run := &QuizRun{
		Specialty: specialty,
		Questions: questions,
		Answers:   make([]domain.Answer, len(questions)),
		StartedAt: s.now(),
	}
	var view QuizView
	err = s.sessions.GetOrCreate(user).Do(func(st *State) error {
		st.Quiz = run
		view = run.view()
		return nil
	})
	return view, err
}

// Current returns the in-progress run.
func (s *QuizService) Current(_ context.Context, user string) (QuizView, error) {
	var view QuizView
	err := s.withRun(user, func(_ *State, run *QuizRun) error {
		view = run.view()
		return nil
	})
	return view, err
}

// Answer records the answer of question index, overwriting any earlier one.
func (s *QuizService) Answer(_ context.Context, user string, index int, answer domain.Answer) error {
	return s.withRun(user, func(_ *State, run *QuizRun) error {
		if index < 0 || index >= len(run.Questions) {
			return fmt.Errorf("question %d of %d: %w", index, len(run.Questions), domain.ErrQuestionOutOfRange)
		}
		run.Answers[index] = answer
		return nil
	})
}

// Finish scores the run, tears it down and saves the score best-effort.
func (s *QuizService) Finish(ctx context.Context, user string) (QuizOutcome, error) {
	var out QuizOutcome
	err := s.withRun(user, func(st *State, run *QuizRun) error {
		out = QuizOutcome{
			Specialty: run.Specialty,
			Result: domain.QuizResult{
				Score:    scoring.ScoreQuiz(run.Answers, run.Questions),
				MaxScore: scoring.MaxQuizScore(run.Questions),
				Total:    len(run.Questions),
			},
			Elapsed: s.now().Sub(run.StartedAt),
		}
		st.Quiz = nil
		out.Persisted = s.recorder.recordQuiz(ctx, user, run.Specialty, out.Result.Score, out.Result.Total, out.Elapsed)
		return nil
	})
	return out, err
}

// Abandon drops the run without scoring.
func (s *QuizService) Abandon(_ context.Context, user string) {
	session, ok := s.sessions.Get(user)
	if !ok {
		return
	}
	_ = session.Do(func(st *State) error {
		st.Quiz = nil
		return nil
	})
	s.sessions.DeleteIfEmpty(user)
}

func (s *QuizService) withRun(user string, fn func(*State, *QuizRun) error) error {
	session, ok := s.sessions.Get(user)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.Do(func(st *State) error {
		if st.Quiz == nil {
			return fmt.Errorf("quiz: %w", domain.ErrNotStarted)
		}
		return fn(st, st.Quiz)
	})
}

func (r *QuizRun) view() QuizView {
	return QuizView{
		Specialty: r.Specialty,
		Questions: r.Questions,
		Answers:   append([]domain.Answer(nil), r.Answers...),
		StartedAt: r.StartedAt,
	}
}
