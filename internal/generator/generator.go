// Package generator assembles competition question sets and exam simulation sessions.
package generator

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"ecn-prep-service/internal/domain"
)

const (
	DefaultPerSpecialtyCap = 10
	DefaultCompetitionCap  = 50

	DefaultSectionCount    = 4
	DefaultSectionSize     = 30
	DefaultExamDuration    = time.Hour
	DefaultSimulationTitle = "Simulation ECN Complète"
)

// DefaultSectionTitles are the four ECN sections, in order.
var DefaultSectionTitles = []string{
	"Section 1 : Médecine Interne et Spécialités",
	"Section 2 : Pathologies Aiguës et Urgences",
	"Section 3 : Diagnostic et Thérapeutique",
	"Section 4 : Situations Complexes",
}

// DefaultBreaks are the pause offsets from the start of a simulation.
var DefaultBreaks = []time.Duration{20 * time.Minute, 40 * time.Minute}

// DefaultDistribution is the per-specialty quota of a 120-question simulation.
func DefaultDistribution() map[string]int {
	return map[string]int{
		"cardiologie":       15,
		"pneumologie":       12,
		"neurologie":        10,
		"gastroenterologie": 10,
		"rhumatologie":      8,
		"nephrologie":       8,
		"endocrinologie":    8,
		"hematologie":       8,
		"infectiologie":     10,
		"urgences":          11,
	}
}

// Bank is the part of the question bank the generator needs.
type Bank interface {
	ListSpecialties() []string
	SampleQuestions(specialty string, n int) []domain.Question
}

// GenerateCompetitionQuestions draws up to perSpecialtyCap questions from every
// specialty, shuffles them and keeps at most totalCap. Caps are taken
// literally: a non-positive cap yields no questions.
func GenerateCompetitionQuestions(bank Bank, perSpecialtyCap, totalCap int, rnd *rand.Rand) []domain.Question {
	if perSpecialtyCap <= 0 || totalCap <= 0 {
		return nil
	}
	var all []domain.Question
	for _, specialty := range bank.ListSpecialties() {
		drawn := bank.SampleQuestions(specialty, perSpecialtyCap)
		if len(drawn) > perSpecialtyCap {
			drawn = drawn[:perSpecialtyCap]
		}
		all = append(all, drawn...)
	}
	shuffle(all, rnd)
	if len(all) > totalCap {
		all = all[:totalCap]
	}
	return all
}

// ExamOptions configures GenerateExamSession.
type ExamOptions struct {
	Distribution  map[string]int
	SectionCount  int
	SectionSize   int
	Duration      time.Duration
	SectionTitles []string
	Breaks        []time.Duration
	Title         string
}

// DefaultExamOptions returns the 120-question, 4x30, one-hour simulation.
func DefaultExamOptions() ExamOptions {
	return ExamOptions{
		Distribution:  DefaultDistribution(),
		SectionCount:  DefaultSectionCount,
		SectionSize:   DefaultSectionSize,
		Duration:      DefaultExamDuration,
		SectionTitles: DefaultSectionTitles,
		Breaks:        DefaultBreaks,
		Title:         DefaultSimulationTitle,
	}
}

func (o ExamOptions) withDefaults() ExamOptions {
	if o.SectionCount <= 0 {
		o.SectionCount = DefaultSectionCount
	}
	if o.SectionSize <= 0 {
		o.SectionSize = DefaultSectionSize
	}
	if o.Duration <= 0 {
		o.Duration = DefaultExamDuration
	}
	if o.Title == "" {
		o.Title = DefaultSimulationTitle
	}
	return o
}

// GenerateExamSession draws each specialty quota, shuffles once and partitions the
// result into positional sections. An empty draw returns ErrEmptySession and no session.
func GenerateExamSession(bank Bank, opts ExamOptions, now time.Time, rnd *rand.Rand) (*domain.SimulationSession, error) {
	opts = opts.withDefaults()

	specialties := make([]string, 0, len(opts.Distribution))
	for specialty := range opts.Distribution {
		specialties = append(specialties, specialty)
	}
	sort.Strings(specialties)

	var questions []domain.Question
	for _, specialty := range specialties {
		count := opts.Distribution[specialty]
		if count <= 0 {
			continue
		}
		drawn := bank.SampleQuestions(specialty, count)
		if len(drawn) > count {
			drawn = drawn[:count]
		}
		questions = append(questions, drawn...)
	}
	if len(questions) == 0 {
		return nil, domain.ErrEmptySession
	}
	shuffle(questions, rnd)

	sectionDuration := opts.Duration / time.Duration(opts.SectionCount)
	bounds := Partition(len(questions), opts.SectionCount, opts.SectionSize)
	sections := make([]domain.Section, len(bounds))
	for i, b := range bounds {
		title := fmt.Sprintf("Section %d", i+1)
		if i < len(opts.SectionTitles) {
			title = opts.SectionTitles[i]
		}
		sections[i] = domain.Section{
			Order:    i + 1,
			Title:    title,
			Start:    b[0],
			End:      b[1],
			Duration: sectionDuration,
		}
	}

	return &domain.SimulationSession{
		ID:        SessionID(now),
		Title:     opts.Title,
		Questions: questions,
		Sections:  sections,
		Duration:  opts.Duration,
		Breaks:    append([]time.Duration(nil), opts.Breaks...),
		CreatedAt: now,
	}, nil
}

// Partition splits n positions into count contiguous [start, end) ranges of size
// each. Trailing ranges may be ragged or empty; positions past count*size belong
// to no range.
func Partition(n, count, size int) [][2]int {
	out := make([][2]int, count)
	for i := 0; i < count; i++ {
		start := min(i*size, n)
		end := min((i+1)*size, n)
		out[i] = [2]int{start, end}
	}
	return out
}

// SessionID derives a simulation id from its creation time. The short random
// suffix keeps ids unique when two sessions start within the same second.
func SessionID(now time.Time) string {
	return "ecn_" + now.Format("20060102_150405") + "_" + uuid.NewString()[:8]
}

func shuffle(qs []domain.Question, rnd *rand.Rand) {
	if rnd == nil {
		rand.Shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
		return
	}
	rnd.Shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
}
