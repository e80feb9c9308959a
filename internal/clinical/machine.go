// Package clinical drives the progressive reveal of a clinical case.
package clinical

import (
	"fmt"
	"sort"

	"ecn-prep-service/internal/domain"
	"ecn-prep-service/internal/scoring"
)

// State is the lifecycle position of a Machine.
type State int

const (
	NotLoaded State = iota
	InProgress
	Finished
)

func (s State) String() string {
	switch s {
	case InProgress:
		return "in_progress"
	case Finished:
		return "finished"
	default:
		return "not_loaded"
	}
}

// CaseSource picks a clinical case for a specialty.
type CaseSource interface {
	GetClinicalCase(specialty string) (domain.ClinicalCase, bool)
}

// Machine is one user's attempt at a clinical case. It is not safe for
// concurrent use; the owning session serializes access.
type Machine struct {
	state     State
	specialty string
	c         domain.ClinicalCase
	cursor    int
	answers   map[int]domain.CaseValue
	result    *domain.CaseScoreResult
}

func NewMachine() *Machine {
	return &Machine{answers: make(map[int]domain.CaseValue)}
}

// Load picks a case for specialty and starts a fresh attempt. When no case
// exists the machine is left untouched and false is returned.
func (m *Machine) Load(src CaseSource, specialty string) bool {
	c, ok := src.GetClinicalCase(specialty)
	if !ok || len(c.Steps) == 0 {
		return false
	}
	m.LoadCase(specialty, c)
	return true
}

// LoadCase starts a fresh attempt on c.
func (m *Machine) LoadCase(specialty string, c domain.ClinicalCase) {
	m.specialty = specialty
	m.c = c
	m.reset()
	m.state = InProgress
}

func (m *Machine) reset() {
	m.cursor = 0
	m.answers = make(map[int]domain.CaseValue)
	m.result = nil
}

func (m *Machine) State() State             { return m.state }
func (m *Machine) Specialty() string        { return m.specialty }
func (m *Machine) Case() domain.ClinicalCase { return m.c }
func (m *Machine) Cursor() int              { return m.cursor }

// Progress returns the cursor and the number of steps.
func (m *Machine) Progress() (int, int) {
	return m.cursor, len(m.c.Steps)
}

// Step returns step i of the loaded case.
func (m *Machine) Step(i int) (domain.Step, error) {
	if m.state == NotLoaded {
		return domain.Step{}, domain.ErrCaseNotLoaded
	}
	if i < 0 || i >= len(m.c.Steps) {
		return domain.Step{}, fmt.Errorf("step %d of %d: %w", i, len(m.c.Steps), domain.ErrStepOutOfRange)
	}
	return m.c.Steps[i], nil
}

// CurrentStep returns the step under the cursor.
func (m *Machine) CurrentStep() (domain.Step, error) {
	return m.Step(m.cursor)
}

// RecordAnswer stores v for step, replacing any earlier value. It never moves the cursor.
func (m *Machine) RecordAnswer(step int, v domain.CaseValue) error {
	switch m.state {
	case NotLoaded:
		return domain.ErrCaseNotLoaded
	case Finished:
		return domain.ErrCaseFinished
	}
	if step < 0 || step >= len(m.c.Steps) {
		return fmt.Errorf("step %d of %d: %w", step, len(m.c.Steps), domain.ErrStepOutOfRange)
	}
	m.answers[step] = v
	return nil
}

// Answer returns the recorded value for step, if any.
func (m *Machine) Answer(step int) (domain.CaseValue, bool) {
	v, ok := m.answers[step]
	return v, ok
}

// Answers returns the answer log ordered by step index.
func (m *Machine) Answers() []domain.CaseAnswer {
	out := make([]domain.CaseAnswer, 0, len(m.answers))
	for step, v := range m.answers {
		out = append(out, domain.CaseAnswer{Step: step, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out
}

// Move shifts the cursor by delta, clamped to the case bounds.
func (m *Machine) Move(delta int) (int, error) {
	if m.state != InProgress {
		return m.cursor, m.notInProgress()
	}
	next := m.cursor + delta
	if next < 0 {
		next = 0
	}
	if last := len(m.c.Steps) - 1; next > last {
		next = last
	}
	m.cursor = next
	return m.cursor, nil
}

// GoTo places the cursor on step i; out-of-range indices are rejected.
func (m *Machine) GoTo(i int) error {
	if m.state != InProgress {
		return m.notInProgress()
	}
	if i < 0 || i >= len(m.c.Steps) {
		return fmt.Errorf("step %d of %d: %w", i, len(m.c.Steps), domain.ErrStepOutOfRange)
	}
	m.cursor = i
	return nil
}

// Finish scores the answer log and freezes it.
func (m *Machine) Finish() (domain.CaseScoreResult, error) {
	if m.state != InProgress {
		if m.state == Finished && m.result != nil {
			return *m.result, domain.ErrCaseFinished
		}
		return domain.CaseScoreResult{}, m.notInProgress()
	}
	res := scoring.ScoreClinicalCase(m.c, m.Answers())
	m.result = &res
	m.state = Finished
	return res, nil
}

// Result returns the stored score once finished.
func (m *Machine) Result() (domain.CaseScoreResult, bool) {
	if m.result == nil {
		return domain.CaseScoreResult{}, false
	}
	return *m.result, true
}

// Restart replays the same case from step 0 with an empty log.
func (m *Machine) Restart() error {
	if m.state != Finished {
		if m.state == NotLoaded {
			return domain.ErrCaseNotLoaded
		}
		return domain.ErrCaseNotFinished
	}
	m.reset()
	m.state = InProgress
	return nil
}

// Discard tears the attempt down completely.
func (m *Machine) Discard() {
	m.state = NotLoaded
	m.specialty = ""
	m.c = domain.ClinicalCase{}
	m.reset()
}

func (m *Machine) notInProgress() error {
	if m.state == Finished {
		return domain.ErrCaseFinished
	}
	return domain.ErrCaseNotLoaded
}
