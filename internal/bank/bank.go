// Package bank indexes questions and clinical cases by specialty.
package bank

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"ecn-prep-service/internal/domain"
)

// SpecialtyFile is the JSON shape of one specialty data file.
type SpecialtyFile struct {
	Quizzes       []domain.Question     `json:"quizzes"`
	ClinicalCases []domain.ClinicalCase `json:"clinical_cases"`
}

// Data is the full bank keyed by specialty name.
type Data map[string]SpecialtyFile

// Validate rejects questions without a correct option.
func (d Data) Validate() error {
	for specialty, file := range d {
		for i, q := range file.Quizzes {
			if len(q.CorrectTexts()) == 0 {
				return fmt.Errorf("%s question %d: %w", specialty, i, domain.ErrNoCorrectOption)
			}
		}
	}
	return nil
}

// Stats counts the bank content.
type Stats struct {
	Specialties   int `json:"specialties"`
	Questions     int `json:"questions"`
	ClinicalCases int `json:"clinicalCases"`
}

// Index is the read-only question bank built once from Data.
type Index struct {
	quizzes map[string][]domain.Question
	cases   map[string][]domain.ClinicalCase

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewIndex builds an index seeded from the wall clock.
func NewIndex(data Data) *Index {
	return NewIndexWithRand(data, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewIndexWithRand builds an index with a caller-provided random source (useful in tests).
func NewIndexWithRand(data Data, rnd *rand.Rand) *Index {
	idx := &Index{
		quizzes: make(map[string][]domain.Question, len(data)),
		cases:   make(map[string][]domain.ClinicalCase, len(data)),
		rnd:     rnd,
	}
	for specialty, file := range data {
		questions := make([]domain.Question, len(file.Quizzes))
		for i, q := range file.Quizzes {
			q.Specialty = specialty
			if q.ID == "" {
				q.ID = specialty + "-" + strconv.Itoa(i)
			}
			questions[i] = q
		}
		cases := make([]domain.ClinicalCase, len(file.ClinicalCases))
		for i, c := range file.ClinicalCases {
			c.Specialty = specialty
			cases[i] = c
		}
		idx.quizzes[specialty] = questions
		idx.cases[specialty] = cases
	}
	return idx
}

// ListSpecialties returns every specialty in sorted order.
func (x *Index) ListSpecialties() []string {
	out := make([]string, 0, len(x.quizzes))
	for specialty := range x.quizzes {
		out = append(out, specialty)
	}
	sort.Strings(out)
	return out
}

// SampleQuestions returns up to n random questions. Unknown specialties and
// short inventory simply yield fewer questions.
func (x *Index) SampleQuestions(specialty string, n int) []domain.Question {
	pool := x.quizzes[specialty]
	if n <= 0 || len(pool) == 0 {
		return nil
	}
	order := x.perm(len(pool))
	if n > len(order) {
		n = len(order)
	}
	out := make([]domain.Question, n)
	for i := 0; i < n; i++ {
		out[i] = pool[order[i]]
	}
	return out
}

// GetClinicalCase picks a random case for the specialty.
func (x *Index) GetClinicalCase(specialty string) (domain.ClinicalCase, bool) {
	cases := x.cases[specialty]
	if len(cases) == 0 {
		return domain.ClinicalCase{}, false
	}
	x.mu.Lock()
	i := x.rnd.Intn(len(cases))
	x.mu.Unlock()
	return cases[i], true
}

// CaseAt returns the case at position i modulo the number of cases. Negative
// positions count back from the end.
func (x *Index) CaseAt(specialty string, i int) (domain.ClinicalCase, bool) {
	cases := x.cases[specialty]
	if len(cases) == 0 {
		return domain.ClinicalCase{}, false
	}
	n := len(cases)
	return cases[((i%n)+n)%n], true
}

// Stats counts specialties, questions and cases.
func (x *Index) Stats() Stats {
	st := Stats{Specialties: len(x.quizzes)}
	for _, qs := range x.quizzes {
		st.Questions += len(qs)
	}
	for _, cs := range x.cases {
		st.ClinicalCases += len(cs)
	}
	return st
}

// Data rebuilds the serializable form of the index.
func (x *Index) Data() Data {
	out := make(Data, len(x.quizzes))
	for specialty, qs := range x.quizzes {
		out[specialty] = SpecialtyFile{
			Quizzes:       append([]domain.Question(nil), qs...),
			ClinicalCases: append([]domain.ClinicalCase(nil), x.cases[specialty]...),
		}
	}
	return out
}

func (x *Index) perm(n int) []int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.rnd.Perm(n)
}
