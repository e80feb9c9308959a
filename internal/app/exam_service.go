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

// ExamOptions configures the simulation runtime.
type ExamOptions struct {
	Generator        generator.ExamOptions
	PassingThreshold float64
}

// DefaultExamOptions is the 120-question, one-hour simulation passed at 70%.
func DefaultExamOptions() ExamOptions {
	return ExamOptions{
		Generator:        generator.DefaultExamOptions(),
		PassingThreshold: scoring.DefaultPassingThreshold,
	}
}

// ExamRun is a simulation in progress or just finished.
type ExamRun struct {
	Session   *domain.SimulationSession
	Answers   []domain.Answer
	StartedAt time.Time
	Outcome   *ExamOutcome
}

func (r *ExamRun) finished() bool { return r.Outcome != nil }

// SectionProgress counts answered questions of one section.
type SectionProgress struct {
	domain.Section
	Answered int `json:"answered"`
}

// ExamStatus is the live view of a simulation. Time values are recomputed
// from the start timestamp on every call.
type ExamStatus struct {
	SessionID      string            `json:"sessionId"`
	Title          string            `json:"title"`
	TotalQuestions int               `json:"totalQuestions"`
	Answered       int               `json:"answered"`
	Sections       []SectionProgress `json:"sections"`
	CurrentSection int               `json:"currentSection"`
	Elapsed        time.Duration     `json:"elapsed"`
	Remaining      time.Duration     `json:"remaining"`
	NextBreak      time.Duration     `json:"nextBreak,omitempty"`
	Finished       bool              `json:"finished"`
	Outcome        *ExamOutcome      `json:"outcome,omitempty"`
}

// ExamOutcome is the scored result of a simulation.
type ExamOutcome struct {
	Summary  domain.ExamSummary     `json:"summary"`
	Result   domain.ExamScoreResult `json:"result"`
	Elapsed  time.Duration          `json:"elapsed"`
	TimedOut bool                   `json:"timedOut"`
	Persisted
}

// ExamService runs timed exam simulations.
type ExamService struct {
	sessions SessionRepository
	banks    BankRepository
	recorder *Recorder
	opts     ExamOptions
	now      func() time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewExamService(sessions SessionRepository, banks BankRepository, recorder *Recorder, opts ExamOptions) *ExamService {
	return NewExamServiceWithClock(sessions, banks, recorder, opts, time.Now, nil)
}

// NewExamServiceWithClock is test-only for deterministic timestamps and draws.
func NewExamServiceWithClock(sessions SessionRepository, banks BankRepository, recorder *Recorder, opts ExamOptions, now func() time.Time, rnd *rand.Rand) *ExamService {
	if opts.PassingThreshold <= 0 {
		opts.PassingThreshold = scoring.DefaultPassingThreshold
	}
	return &ExamService{sessions: sessions, banks: banks, recorder: recorder, opts: opts, now: now, rnd: rnd}
}

// Start generates a session and starts the clock. When the bank cannot supply
// a single question, nothing is started and ErrEmptySession is returned.
func (s *ExamService) Start(ctx context.Context, user string) (ExamStatus, error) {
	bank, err := s.banks.GetBank(ctx)
	if err != nil {
		return ExamStatus{}, err
	}
	now := s.now()
	s.rndMu.Lock()
	session, err := generator.GenerateExamSession(bank, s.opts.Generator, now, s.rnd)
	s.rndMu.Unlock()
	if err != nil {
		return ExamStatus{}, err
	}

	run := &ExamRun{
		Session:   session,
		Answers:   make([]domain.Answer, len(session.Questions)),
		StartedAt: now,
	}
	var status ExamStatus
	err = s.sessions.GetOrCreate(user).Do(func(st *State) error {
		st.Exam = run
		status = run.status(now)
		return nil
	})
	return status, err
}

// Session returns the questions of the running simulation.
func (s *ExamService) Session(_ context.Context, user string) (*domain.SimulationSession, error) {
	var out *domain.SimulationSession
	err := s.withRun(user, func(run *ExamRun) error {
		out = run.Session
		return nil
	})
	return out, err
}

// Answer records the answer of question index. Past the deadline the run is
// finished with the answers so far and ErrRunFinished is returned.
func (s *ExamService) Answer(ctx context.Context, user string, index int, answer domain.Answer) (ExamStatus, error) {
	var status ExamStatus
	err := s.withRun(user, func(run *ExamRun) error {
		if s.expire(ctx, user, run) || run.finished() {
			return domain.ErrRunFinished
		}
		if index < 0 || index >= len(run.Answers) {
			return fmt.Errorf("question %d of %d: %w", index, len(run.Answers), domain.ErrQuestionOutOfRange)
		}
		run.Answers[index] = answer
		status = run.status(s.now())
		return nil
	})
	return status, err
}

// Status recomputes the clock and force-finishes an expired simulation.
func (s *ExamService) Status(ctx context.Context, user string) (ExamStatus, error) {
	var status ExamStatus
	err := s.withRun(user, func(run *ExamRun) error {
		s.expire(ctx, user, run)
		status = run.status(s.now())
		return nil
	})
	return status, err
}

// Finish scores the simulation on demand.
func (s *ExamService) Finish(ctx context.Context, user string) (ExamOutcome, error) {
	var out ExamOutcome
	err := s.withRun(user, func(run *ExamRun) error {
		if !s.expire(ctx, user, run) && !run.finished() {
			s.finish(ctx, user, run, false)
		}
		out = *run.Outcome
		return nil
	})
	return out, err
}

// Result returns the last finished outcome.
func (s *ExamService) Result(ctx context.Context, user string) (ExamOutcome, error) {
	var out ExamOutcome
	err := s.withRun(user, func(run *ExamRun) error {
		s.expire(ctx, user, run)
		if !run.finished() {
			return fmt.Errorf("exam result: %w", domain.ErrNotStarted)
		}
		out = *run.Outcome
		return nil
	})
	return out, err
}

// Abandon tears the simulation down without scoring or saving.
func (s *ExamService) Abandon(_ context.Context, user string) {
	session, ok := s.sessions.Get(user)
	if !ok {
		return
	}
	_ = session.Do(func(st *State) error {
		st.Exam = nil
		return nil
	})
	s.sessions.DeleteIfEmpty(user)
}

func (s *ExamService) expire(ctx context.Context, user string, run *ExamRun) bool {
	if run.finished() || s.now().Sub(run.StartedAt) < run.Session.Duration {
		return false
	}
	s.finish(ctx, user, run, true)
	return true
}

func (s *ExamService) finish(ctx context.Context, user string, run *ExamRun, timedOut bool) {
	elapsed := s.now().Sub(run.StartedAt)
	if elapsed > run.Session.Duration {
		elapsed = run.Session.Duration
	}
	out := &ExamOutcome{
		Summary:  run.Session.Summary(),
		Result:   scoring.ScoreExamSimulation(run.Answers, run.Session.Questions, s.opts.PassingThreshold),
		Elapsed:  elapsed,
		TimedOut: timedOut,
	}
	run.Outcome = out
	out.Persisted = s.recorder.recordExam(ctx, user, out.Summary, out.Result, elapsed)
}

func (s *ExamService) withRun(user string, fn func(*ExamRun) error) error {
	session, ok := s.sessions.Get(user)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.Do(func(st *State) error {
		if st.Exam == nil {
			return fmt.Errorf("exam: %w", domain.ErrNotStarted)
		}
		return fn(st.Exam)
	})
}

func (r *ExamRun) status(now time.Time) ExamStatus {
	elapsed := now.Sub(r.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	if r.finished() {
		elapsed = r.Outcome.Elapsed
	}
	remaining := r.Session.Duration - elapsed
	if remaining < 0 || r.finished() {
		remaining = 0
	}

	st := ExamStatus{
		SessionID:      r.Session.ID,
		Title:          r.Session.Title,
		TotalQuestions: len(r.Session.Questions),
		Sections:       make([]SectionProgress, len(r.Session.Sections)),
		CurrentSection: -1,
		Elapsed:        elapsed,
		Remaining:      remaining,
		Finished:       r.finished(),
		Outcome:        r.Outcome,
	}
	for i, sec := range r.Session.Sections {
		sp := SectionProgress{Section: sec}
		for j := sec.Start; j < sec.End; j++ {
			if !r.Answers[j].Empty() {
				sp.Answered++
			}
		}
		st.Sections[i] = sp
	}
	for _, a := range r.Answers {
		if !a.Empty() {
			st.Answered++
		}
	}
	if !r.finished() {
		var offset time.Duration
		for i, sec := range r.Session.Sections {
			offset += sec.Duration
			if elapsed < offset {
				st.CurrentSection = i
				break
			}
		}
		for _, b := range r.Session.Breaks {
			if b > elapsed {
				st.NextBreak = b - elapsed
				break
			}
		}
	}
	return st
}
