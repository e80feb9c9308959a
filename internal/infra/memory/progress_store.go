package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ecn-prep-service/internal/domain"
)

type scoreRow struct {
	user      string
	specialty string
	score     int
	total     int
	elapsed   int
	caseTitle string
	createdAt time.Time
}

type examRow struct {
	user      string
	summary   domain.ExamSummary
	result    domain.ExamScoreResult
	elapsed   int
	createdAt time.Time
}

// ProgressStore is an in-memory implementation of app.ProgressStore.
type ProgressStore struct {
	now func() time.Time

	mu     sync.RWMutex
	scores []scoreRow
	exams  []examRow
	badges map[string][]string
}

func NewProgressStore() *ProgressStore {
	return NewProgressStoreWithClock(time.Now)
}

// NewProgressStoreWithClock allows deterministic timestamps in tests.
func NewProgressStoreWithClock(now func() time.Time) *ProgressStore {
	return &ProgressStore{now: now, badges: make(map[string][]string)}
}

func (s *ProgressStore) SaveQuizScore(_ context.Context, user, specialty string, score, total, elapsedSeconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores = append(s.scores, scoreRow{user: user, specialty: specialty, score: score, total: total, elapsed: elapsedSeconds, createdAt: s.now()})
	return nil
}

// SaveClinicalCaseScore stores the truncated percentage as a score row.
func (s *ProgressStore) SaveClinicalCaseScore(_ context.Context, user, specialty, caseTitle string, percentage float64, totalSteps, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores = append(s.scores, scoreRow{user: user, specialty: specialty, score: int(percentage), total: totalSteps, caseTitle: caseTitle, createdAt: s.now()})
	return nil
}

func (s *ProgressStore) SaveExamResult(_ context.Context, user string, summary domain.ExamSummary, result domain.ExamScoreResult, elapsedSeconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	result.Details = nil
	s.exams = append(s.exams, examRow{user: user, summary: summary, result: result, elapsed: elapsedSeconds, createdAt: s.now()})
	return nil
}

func (s *ProgressStore) GetLeaderboard(_ context.Context, specialty string, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byUser := make(map[string]*domain.LeaderboardEntry)
	for _, row := range s.scores {
		if specialty != "" && row.specialty != specialty {
			continue
		}
		e, ok := byUser[row.user]
		if !ok {
			e = &domain.LeaderboardEntry{User: row.user}
			byUser[row.user] = e
		}
		e.AggregateScore += row.score
		e.AttemptCount++
	}
	out := make([]domain.LeaderboardEntry, 0, len(byUser))
	for _, e := range byUser {
		out = append(out, *e)
	}
	domain.SortLeaderboard(out)
	return truncate(out, limit), nil
}

func (s *ProgressStore) GetExamLeaderboard(_ context.Context, limit int) ([]domain.ExamLeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return truncate(s.examBoardLocked(), limit), nil
}

func (s *ProgressStore) GetUserExamStats(_ context.Context, user string) (domain.ExamStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st domain.ExamStats
	var pctSum float64
	var durSum int
	for _, row := range s.exams {
		if row.user != user {
			continue
		}
		pct := row.result.Percentage
		if st.AttemptCount == 0 || pct > st.BestPercentage {
			st.BestPercentage = pct
		}
		if st.AttemptCount == 0 || pct < st.WorstPercentage {
			st.WorstPercentage = pct
		}
		if row.result.Passed {
			st.PassCount++
		}
		st.AttemptCount++
		pctSum += pct
		durSum += row.elapsed
	}
	if st.AttemptCount > 0 {
		st.AvgPercentage = pctSum / float64(st.AttemptCount)
		st.AvgDuration = durSum / st.AttemptCount
	}
	return st, nil
}

func (s *ProgressStore) GetUserProgress(_ context.Context, user string) (domain.UserProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := domain.UserProgress{User: user, BySpecialty: []domain.SpecialtyProgress{}, Timeline: []domain.DailyProgress{}}
	bySpecialty := make(map[string]*domain.SpecialtyProgress)
	elapsed := make(map[string]int)
	byDay := make(map[string]*domain.DailyProgress)
	dayTotals := make(map[string]int)
	for _, row := range s.scores {
		if row.user != user {
			continue
		}
		sp, ok := bySpecialty[row.specialty]
		if !ok {
			sp = &domain.SpecialtyProgress{Specialty: row.specialty}
			bySpecialty[row.specialty] = sp
		}
		sp.AttemptCount++
		sp.TotalScore += row.score
		elapsed[row.specialty] += row.elapsed

		day := row.createdAt.UTC().Format("2006-01-02")
		d, ok := byDay[day]
		if !ok {
			d = &domain.DailyProgress{Date: day}
			byDay[day] = d
		}
		d.AttemptCount++
		dayTotals[day] += row.score
	}
	for specialty, sp := range bySpecialty {
		sp.AvgScore = float64(sp.TotalScore) / float64(sp.AttemptCount)
		sp.AvgTimeSeconds = float64(elapsed[specialty]) / float64(sp.AttemptCount)
		out.BySpecialty = append(out.BySpecialty, *sp)
	}
	domain.SortSpecialtyProgress(out.BySpecialty)
	for day, d := range byDay {
		d.AvgScore = float64(dayTotals[day]) / float64(d.AttemptCount)
		out.Timeline = append(out.Timeline, *d)
	}
	sort.Slice(out.Timeline, func(i, j int) bool { return out.Timeline[i].Date < out.Timeline[j].Date })
	return out, nil
}

func (s *ProgressStore) TotalScore(_ context.Context, user string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, row := range s.scores {
		if row.user == user {
			total += row.score
		}
	}
	return total, nil
}

func (s *ProgressStore) UserBadges(_ context.Context, user string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.badges[user]...), nil
}

func (s *ProgressStore) AwardBadge(_ context.Context, user, badgeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.badges[user] {
		if id == badgeID {
			return nil
		}
	}
	s.badges[user] = append(s.badges[user], badgeID)
	return nil
}

func (s *ProgressStore) ExamRank(_ context.Context, user string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	board := s.examBoardLocked()
	for i, e := range board {
		if e.User == user {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (s *ProgressStore) examBoardLocked() []domain.ExamLeaderboardEntry {
	byUser := make(map[string]*domain.ExamLeaderboardEntry)
	sums := make(map[string]float64)
	for _, row := range s.exams {
		e, ok := byUser[row.user]
		if !ok {
			e = &domain.ExamLeaderboardEntry{User: row.user, BestPercentage: row.result.Percentage}
			byUser[row.user] = e
		}
		if row.result.Percentage > e.BestPercentage {
			e.BestPercentage = row.result.Percentage
		}
		e.AttemptCount++
		sums[row.user] += row.result.Percentage
	}
	out := make([]domain.ExamLeaderboardEntry, 0, len(byUser))
	for user, e := range byUser {
		e.AvgPercentage = sums[user] / float64(e.AttemptCount)
		out = append(out, *e)
	}
	domain.SortExamLeaderboard(out)
	return out
}

func truncate[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}
