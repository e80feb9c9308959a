package app

import (
	"context"
	"log"

	"ecn-prep-service/internal/domain"
)

// Badges is the full award table. Score badges compare against the cumulative
// quiz score; exam badges against simulation statistics.
var Badges = []domain.Badge{
	{ID: "debutant", Name: "Débutant", Threshold: 10, Kind: domain.BadgeScore},
	{ID: "intermediaire", Name: "Intermédiaire", Threshold: 50, Kind: domain.BadgeScore},
	{ID: "expert", Name: "Expert", Threshold: 100, Kind: domain.BadgeScore},
	{ID: "rapide", Name: "Rapide", Threshold: 150, Kind: domain.BadgeScore},
	{ID: "champion", Name: "Champion", Threshold: 200, Kind: domain.BadgeScore},
	{ID: "clinician", Name: "Excellent Clinicien", Threshold: 300, Kind: domain.BadgeScore},
	{ID: "maitre", Name: "Maître", Threshold: 500, Kind: domain.BadgeScore},
	{ID: "simulateur", Name: "Simulateur ECN", Threshold: 1, Kind: domain.BadgeExam},
	{ID: "marathonien", Name: "Marathonien", Threshold: 5, Kind: domain.BadgeExam},
	{ID: "excellent", Name: "Excellent", Threshold: 85, Kind: domain.BadgeExam},
	{ID: "podium", Name: "Sur le Podium", Threshold: 3, Kind: domain.BadgeExam},
}

// BadgeByID looks a badge up in the award table.
func BadgeByID(id string) (domain.Badge, bool) {
	for _, b := range Badges {
		if b.ID == id {
			return b, true
		}
	}
	return domain.Badge{}, false
}

// BadgeService awards badges after a successful save. Every check is
// best-effort: a store error yields no new badges.
type BadgeService struct {
	store ProgressStore
}

func NewBadgeService(store ProgressStore) *BadgeService {
	return &BadgeService{store: store}
}

// CheckScoreBadges awards every score badge whose threshold the user's
// cumulative score has reached.
func (b *BadgeService) CheckScoreBadges(ctx context.Context, user string) []domain.Badge {
	total, err := b.store.TotalScore(ctx, user)
	if err != nil {
		log.Printf("badges: total score for %s: %v", user, err)
		return nil
	}
	owned, ok := b.owned(ctx, user)
	if !ok {
		return nil
	}
	var candidates []domain.Badge
	for _, badge := range Badges {
		if badge.Kind == domain.BadgeScore && total >= badge.Threshold {
			candidates = append(candidates, badge)
		}
	}
	return b.award(ctx, user, owned, candidates)
}

// CheckExamBadges awards the simulation badges.
func (b *BadgeService) CheckExamBadges(ctx context.Context, user string) []domain.Badge {
	stats, err := b.store.GetUserExamStats(ctx, user)
	if err != nil {
		log.Printf("badges: exam stats for %s: %v", user, err)
		return nil
	}
	rank, err := b.store.ExamRank(ctx, user)
	if err != nil {
		log.Printf("badges: exam rank for %s: %v", user, err)
		return nil
	}
	owned, ok := b.owned(ctx, user)
	if !ok {
		return nil
	}

	var candidates []domain.Badge
	for _, badge := range Badges {
		if badge.Kind != domain.BadgeExam {
			continue
		}
		var earned bool
		switch badge.ID {
		case "simulateur", "marathonien":
			earned = stats.AttemptCount >= badge.Threshold
		case "excellent":
			earned = stats.AttemptCount > 0 && stats.BestPercentage >= float64(badge.Threshold)
		case "podium":
			earned = rank > 0 && rank <= badge.Threshold
		}
		if earned {
			candidates = append(candidates, badge)
		}
	}
	return b.award(ctx, user, owned, candidates)
}

// UserBadges returns the badges a user holds, in award-table order.
func (b *BadgeService) UserBadges(ctx context.Context, user string) ([]domain.Badge, error) {
	ids, err := b.store.UserBadges(ctx, user)
	if err != nil {
		return nil, err
	}
	held := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		held[id] = struct{}{}
	}
	out := make([]domain.Badge, 0, len(ids))
	for _, badge := range Badges {
		if _, ok := held[badge.ID]; ok {
			out = append(out, badge)
		}
	}
	return out, nil
}

func (b *BadgeService) owned(ctx context.Context, user string) (map[string]struct{}, bool) {
	ids, err := b.store.UserBadges(ctx, user)
	if err != nil {
		log.Printf("badges: list for %s: %v", user, err)
		return nil, false
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, true
}

func (b *BadgeService) award(ctx context.Context, user string, owned map[string]struct{}, candidates []domain.Badge) []domain.Badge {
	var awarded []domain.Badge
	for _, badge := range candidates {
		if _, ok := owned[badge.ID]; ok {
			continue
		}
		if err := b.store.AwardBadge(ctx, user, badge.ID); err != nil {
			log.Printf("badges: award %s to %s: %v", badge.ID, user, err)
			return awarded
		}
		awarded = append(awarded, badge)
	}
	return awarded
}
