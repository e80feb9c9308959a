package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"ecn-prep-service/internal/domain"
	"ecn-prep-service/internal/generator"
	"ecn-prep-service/internal/scoring"
)

// CompetitionSpecialty is the specialty competition scores are saved under.
const CompetitionSpecialty = "competition"

// CompetitionOptions configures the competition mode.
type CompetitionOptions struct {
	Duration        time.Duration
	QuestionCap     int
	PerSpecialtyCap int
}

// DefaultCompetitionOptions is a 10 minute, 50 question run.
func DefaultCompetitionOptions() CompetitionOptions {
	return CompetitionOptions{
		Duration:        10 * time.Minute,
		QuestionCap:     generator.DefaultCompetitionCap,
		PerSpecialtyCap: generator.DefaultPerSpecialtyCap,
	}
}

// CompetitionRun is a timed mixed-specialty run scored live.
type CompetitionRun struct {
	Questions []domain.Question
	Answered  []bool
	Cursor    int
	Score     float64
	StartedAt time.Time
	Duration  time.Duration
	Finished  bool
	Outcome   *CompetitionOutcome
}

// CompetitionStatus is the live view of a run.
type CompetitionStatus struct {
	Cursor        int                 `json:"cursor"`
	Total         int                 `json:"total"`
	Question      *domain.Question    `json:"question,omitempty"`
	Answered      []bool              `json:"answered"`
	AnsweredCount int                 `json:"answeredCount"`
	Score         float64             `json:"score"`
	Remaining     time.Duration       `json:"remaining"`
	Finished      bool                `json:"finished"`
	Outcome       *CompetitionOutcome `json:"outcome,omitempty"`
}

// CompetitionAnswer is the feedback of one validated question.
type CompetitionAnswer struct {
	Delta  float64           `json:"delta"`
	Status CompetitionStatus `json:"status"`
}

// CompetitionOutcome is the result of a finished competition.
type CompetitionOutcome struct {
	Score         float64       `json:"score"`
	AnsweredCount int           `json:"answeredCount"`
	Total         int           `json:"total"`
	Accuracy      float64       `json:"accuracy"`
	Elapsed       time.Duration `json:"elapsed"`
	TimedOut      bool          `json:"timedOut"`
	Persisted
}

// CompetitionService runs the timed competition mode.
type CompetitionService struct {
	sessions SessionRepository
	banks    BankRepository
	recorder *Recorder
	opts     CompetitionOptions
	now      func() time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewCompetitionService(sessions SessionRepository, banks BankRepository, recorder *Recorder, opts CompetitionOptions) *CompetitionService {
	return NewCompetitionServiceWithClock(sessions, banks, recorder, opts, time.Now, nil)
}

// NewCompetitionServiceWithClock is test-only for deterministic timestamps and draws.
func NewCompetitionServiceWithClock(sessions SessionRepository, banks BankRepository, recorder *Recorder, opts CompetitionOptions, now func() time.Time, rnd *rand.Rand) *CompetitionService {
	def := DefaultCompetitionOptions()
	if opts.Duration <= 0 {
		opts.Duration = def.Duration
	}
	if opts.QuestionCap <= 0 {
		opts.QuestionCap = def.QuestionCap
	}
	if opts.PerSpecialtyCap <= 0 {
		opts.PerSpecialtyCap = def.PerSpecialtyCap
	}
	return &CompetitionService{sessions: sessions, banks: banks, recorder: recorder, opts: opts, now: now, rnd: rnd}
}

// Start draws a fresh question set and starts the countdown.
func (s *CompetitionService) Start(ctx context.Context, user string) (CompetitionStatus, error) {
	bank, err := s.banks.GetBank(ctx)
	if err != nil {
		return CompetitionStatus{}, err
	}
	s.rndMu.Lock()
	questions := generator.GenerateCompetitionQuestions(bank, s.opts.PerSpecialtyCap, s.opts.QuestionCap, s.rnd)
	s.rndMu.Unlock()
	if len(questions) == 0 {
		return CompetitionStatus{}, fmt.Errorf("competition: %w", domain.ErrNoQuestions)
	}
	run := &CompetitionRun{
		Questions: questions,
		Answered:  make([]bool, len(questions)),
		StartedAt: s.now(),
		Duration:  s.opts.Duration,
	}
	var status CompetitionStatus
	err = s.sessions.GetOrCreate(user).Do(func(st *State) error {
		st.Competition = run
		status = run.status(s.now())
		return nil
	})
	return status, err
}

// Status recomputes the remaining time and force-finishes an expired run.
func (s *CompetitionService) Status(ctx context.Context, user string) (CompetitionStatus, error) {
	var status CompetitionStatus
	err := s.withRun(user, func(run *CompetitionRun) error {
		s.expire(ctx, user, run)
		status = run.status(s.now())
		return nil
	})
	return status, err
}

// Answer validates selected against question index once, applies the score
// delta and moves the cursor to the next question (wrapping to the first).
func (s *CompetitionService) Answer(ctx context.Context, user string, index int, selected string) (CompetitionAnswer, error) {
	var out CompetitionAnswer
	err := s.withRun(user, func(run *CompetitionRun) error {
		if s.expire(ctx, user, run) || run.Finished {
			return domain.ErrRunFinished
		}
		if index < 0 || index >= len(run.Questions) {
			return fmt.Errorf("question %d of %d: %w", index, len(run.Questions), domain.ErrQuestionOutOfRange)
		}
		if run.Answered[index] {
			return domain.ErrAlreadyAnswered
		}
		delta := scoring.CompetitionDelta(run.Questions[index], selected)
		run.Score = scoring.ApplyCompetitionDelta(run.Score, delta)
		run.Answered[index] = true
		run.Cursor = (index + 1) % len(run.Questions)
		out = CompetitionAnswer{Delta: delta, Status: run.status(s.now())}
		return nil
	})
	return out, err
}

// Skip moves past the current question without scoring it.
func (s *CompetitionService) Skip(ctx context.Context, user string) (CompetitionStatus, error) {
	return s.move(ctx, user, func(run *CompetitionRun) error {
		run.Cursor = (run.Cursor + 1) % len(run.Questions)
		return nil
	})
}

// GoTo jumps to question index.
func (s *CompetitionService) GoTo(ctx context.Context, user string, index int) (CompetitionStatus, error) {
	return s.move(ctx, user, func(run *CompetitionRun) error {
		if index < 0 || index >= len(run.Questions) {
			return fmt.Errorf("question %d of %d: %w", index, len(run.Questions), domain.ErrQuestionOutOfRange)
		}
		run.Cursor = index
		return nil
	})
}

// Finish ends the run manually and saves the score.
func (s *CompetitionService) Finish(ctx context.Context, user string) (CompetitionOutcome, error) {
	var out CompetitionOutcome
	err := s.withRun(user, func(run *CompetitionRun) error {
		if !s.expire(ctx, user, run) && !run.Finished {
			s.finish(ctx, user, run, false)
		}
		out = *run.Outcome
		return nil
	})
	return out, err
}

// Abandon drops the run without saving.
func (s *CompetitionService) Abandon(_ context.Context, user string) {
	session, ok := s.sessions.Get(user)
	if !ok {
		return
	}
	_ = session.Do(func(st *State) error {
		st.Competition = nil
		return nil
	})
	s.sessions.DeleteIfEmpty(user)
}

func (s *CompetitionService) move(ctx context.Context, user string, fn func(*CompetitionRun) error) (CompetitionStatus, error) {
	var status CompetitionStatus
	err := s.withRun(user, func(run *CompetitionRun) error {
		if s.expire(ctx, user, run) || run.Finished {
			return domain.ErrRunFinished
		}
		if err := fn(run); err != nil {
			return err
		}
		status = run.status(s.now())
		return nil
	})
	return status, err
}

// expire finishes the run when its countdown reached zero and reports whether it did.
func (s *CompetitionService) expire(ctx context.Context, user string, run *CompetitionRun) bool {
	if run.Finished || s.now().Sub(run.StartedAt) < run.Duration {
		return false
	}
	s.finish(ctx, user, run, true)
	return true
}

func (s *CompetitionService) finish(ctx context.Context, user string, run *CompetitionRun, timedOut bool) {
	elapsed := s.now().Sub(run.StartedAt)
	if elapsed > run.Duration {
		elapsed = run.Duration
	}
	answered := run.answeredCount()
	out := &CompetitionOutcome{
		Score:         run.Score,
		AnsweredCount: answered,
		Total:         len(run.Questions),
		Accuracy:      scoring.Percentage(run.Score, float64(2*answered)),
		Elapsed:       elapsed,
		TimedOut:      timedOut,
	}
	run.Finished = true
	run.Outcome = out
	out.Persisted = s.recorder.recordQuiz(ctx, user, CompetitionSpecialty, int(run.Score), answered, elapsed)
}

func (s *CompetitionService) withRun(user string, fn func(*CompetitionRun) error) error {
	session, ok := s.sessions.Get(user)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.Do(func(st *State) error {
		if st.Competition == nil {
			return fmt.Errorf("competition: %w", domain.ErrNotStarted)
		}
		return fn(st.Competition)
	})
}

func (r *CompetitionRun) answeredCount() int {
	n := 0
	for _, a := range r.Answered {
		if a {
			n++
		}
	}
	return n
}

func (r *CompetitionRun) status(now time.Time) CompetitionStatus {
	remaining := r.Duration - now.Sub(r.StartedAt)
	if remaining < 0 || r.Finished {
		remaining = 0
	}
	st := CompetitionStatus{
		Cursor:        r.Cursor,
		Total:         len(r.Questions),
		Answered:      append([]bool(nil), r.Answered...),
		AnsweredCount: r.answeredCount(),
		Score:         r.Score,
		Remaining:     remaining,
		Finished:      r.Finished,
		Outcome:       r.Outcome,
	}
	if !r.Finished && r.Cursor < len(r.Questions) {
		q := r.Questions[r.Cursor]
		st.Question = &q
	}
	return st
}
