package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"ecn-prep-service/internal/app"
	"ecn-prep-service/internal/domain"
)

// ProgressHandler serves leaderboards, statistics, badges and the bank catalogue.
type ProgressHandler struct {
	hub    *app.LeaderboardHub
	store  app.ProgressStore
	badges *app.BadgeService
	banks  app.BankRepository
}

func NewProgressHandler(hub *app.LeaderboardHub, store app.ProgressStore, badges *app.BadgeService, banks app.BankRepository) *ProgressHandler {
	return &ProgressHandler{hub: hub, store: store, badges: badges, banks: banks}
}

// Specialties handles GET /specialties
func (h *ProgressHandler) Specialties(w http.ResponseWriter, r *http.Request) {
	b, err := h.banks.GetBank(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	names := b.ListSpecialties()
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"specialties": names})
}

// Leaderboard handles GET /leaderboard?specialty=&limit=
func (h *ProgressHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := h.hub.Snapshot(r.Context(), r.URL.Query().Get("specialty"), queryInt(r, "limit", 0))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

// ExamLeaderboard handles GET /leaderboard/exams?limit=
func (h *ProgressHandler) ExamLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.GetExamLeaderboard(r.Context(), queryInt(r, "limit", app.DefaultLeaderboardLimit))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.ExamLeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// ExamStats handles GET /users/{user}/exam-stats
func (h *ProgressHandler) ExamStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.store.GetUserExamStats(r.Context(), mux.Vars(r)["user"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Progress handles GET /users/{user}/progress
func (h *ProgressHandler) Progress(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.GetUserProgress(r.Context(), mux.Vars(r)["user"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Badges handles GET /users/{user}/badges
func (h *ProgressHandler) Badges(w http.ResponseWriter, r *http.Request) {
	badges, err := h.badges.UserBadges(r.Context(), mux.Vars(r)["user"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"badges": badges})
}
