package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"ecn-prep-service/internal/clinical"
	"ecn-prep-service/internal/domain"
)

// CaseView is what a client sees of a clinical case attempt.
type CaseView struct {
	AttemptID  string                  `json:"attemptId,omitempty"`
	State      string                  `json:"state"`
	Specialty  string                  `json:"specialty,omitempty"`
	Title      string                  `json:"title,omitempty"`
	Difficulty string                  `json:"difficulty,omitempty"`
	Cursor     int                     `json:"cursor"`
	TotalSteps int                     `json:"totalSteps"`
	Step       *domain.Step            `json:"step,omitempty"`
	Answer     *domain.CaseValue       `json:"answer,omitempty"`
	Answers    []domain.CaseAnswer     `json:"answers"`
	Result     *domain.CaseScoreResult `json:"result,omitempty"`
	Solution   string                  `json:"solution,omitempty"`
}

// CaseOutcome is the result of a finished clinical case.
type CaseOutcome struct {
	AttemptID string                 `json:"attemptId"`
	Title     string                 `json:"title"`
	Result    domain.CaseScoreResult `json:"result"`
	Solution  string                 `json:"solution,omitempty"`
	Persisted
}

// CaseService drives one clinical case attempt per user.
type CaseService struct {
	sessions SessionRepository
	banks    BankRepository
	recorder *Recorder
}

func NewCaseService(sessions SessionRepository, banks BankRepository, recorder *Recorder) *CaseService {
	return &CaseService{sessions: sessions, banks: banks, recorder: recorder}
}

// Load picks a case for specialty, replacing any current attempt.
func (s *CaseService) Load(ctx context.Context, user, specialty string) (CaseView, error) {
	bank, err := s.banks.GetBank(ctx)
	if err != nil {
		return CaseView{}, err
	}
	var view CaseView
	err = s.sessions.GetOrCreate(user).Do(func(st *State) error {
		if st.Case == nil {
			st.Case = clinical.NewMachine()
		}
		if !st.Case.Load(bank, specialty) {
			return fmt.Errorf("%s: %w", specialty, domain.ErrCaseNotFound)
		}
		st.CaseAttempt = uuid.NewString()
		view = caseView(st)
		return nil
	})
	if errors.Is(err, domain.ErrCaseNotFound) {
		s.sessions.DeleteIfEmpty(user)
	}
	return view, err
}

// View returns the attempt as it stands.
func (s *CaseService) View(_ context.Context, user string) (CaseView, error) {
	var view CaseView
	err := s.withMachine(user, func(st *State) error {
		view = caseView(st)
		return nil
	})
	return view, err
}

// Record stores the answer of step without moving the cursor.
func (s *CaseService) Record(_ context.Context, user string, step int, v domain.CaseValue) (CaseView, error) {
	var view CaseView
	err := s.withMachine(user, func(st *State) error {
		if err := st.Case.RecordAnswer(step, v); err != nil {
			return err
		}
		view = caseView(st)
		return nil
	})
	return view, err
}

// Move shifts the cursor by delta (clamped).
func (s *CaseService) Move(_ context.Context, user string, delta int) (CaseView, error) {
	var view CaseView
	err := s.withMachine(user, func(st *State) error {
		if _, err := st.Case.Move(delta); err != nil {
			return err
		}
		view = caseView(st)
		return nil
	})
	return view, err
}

// GoTo places the cursor on step.
func (s *CaseService) GoTo(_ context.Context, user string, step int) (CaseView, error) {
	var view CaseView
	err := s.withMachine(user, func(st *State) error {
		if err := st.Case.GoTo(step); err != nil {
			return err
		}
		view = caseView(st)
		return nil
	})
	return view, err
}

// Finish scores the attempt and saves it best-effort.
func (s *CaseService) Finish(ctx context.Context, user string) (CaseOutcome, error) {
	var out CaseOutcome
	err := s.withMachine(user, func(st *State) error {
		res, err := st.Case.Finish()
		if err != nil {
			return err
		}
		c := st.Case.Case()
		out = CaseOutcome{AttemptID: st.CaseAttempt, Title: c.Title, Result: res, Solution: c.Solution}
		out.Persisted = s.recorder.recordCase(ctx, user, st.Case.Specialty(), c, res)
		return nil
	})
	return out, err
}

// Restart replays the finished case from its first step.
func (s *CaseService) Restart(_ context.Context, user string) (CaseView, error) {
	var view CaseView
	err := s.withMachine(user, func(st *State) error {
		if err := st.Case.Restart(); err != nil {
			return err
		}
		st.CaseAttempt = uuid.NewString()
		view = caseView(st)
		return nil
	})
	return view, err
}

// Discard drops the attempt.
func (s *CaseService) Discard(_ context.Context, user string) {
	session, ok := s.sessions.Get(user)
	if !ok {
		return
	}
	_ = session.Do(func(st *State) error {
		if st.Case != nil {
			st.Case.Discard()
		}
		st.CaseAttempt = ""
		return nil
	})
	s.sessions.DeleteIfEmpty(user)
}

func (s *CaseService) withMachine(user string, fn func(*State) error) error {
	session, ok := s.sessions.Get(user)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.Do(func(st *State) error {
		if st.Case == nil || st.Case.State() == clinical.NotLoaded {
			return domain.ErrCaseNotLoaded
		}
		return fn(st)
	})
}

func caseView(st *State) CaseView {
	m := st.Case
	c := m.Case()
	cursor, total := m.Progress()
	view := CaseView{
		AttemptID:  st.CaseAttempt,
		State:      m.State().String(),
		Specialty:  m.Specialty(),
		Title:      c.Title,
		Difficulty: c.Difficulty,
		Cursor:     cursor,
		TotalSteps: total,
		Answers:    m.Answers(),
	}
	if step, err := m.CurrentStep(); err == nil {
		view.Step = &step
	}
	if v, ok := m.Answer(cursor); ok {
		view.Answer = &v
	}
	if res, ok := m.Result(); ok {
		view.Result = &res
		view.Solution = c.Solution
	}
	return view
}
