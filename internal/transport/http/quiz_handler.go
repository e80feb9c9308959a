package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"ecn-prep-service/internal/app"
	"ecn-prep-service/internal/domain"
)

// QuizHandler serves practice quizzes.
type QuizHandler struct {
	service *app.QuizService
}

func NewQuizHandler(service *app.QuizService) *QuizHandler {
	return &QuizHandler{service: service}
}

type startQuizRequest struct {
	Specialty string `json:"specialty"`
	Count     int    `json:"count"`
}

type quizResponse struct {
	Specialty string          `json:"specialty"`
	Questions []questionView  `json:"questions"`
	Answers   []domain.Answer `json:"answers"`
	StartedAt time.Time       `json:"startedAt"`
}

func newQuizResponse(v app.QuizView) quizResponse {
	return quizResponse{Specialty: v.Specialty, Questions: newQuestionViews(v.Questions), Answers: v.Answers, StartedAt: v.StartedAt}
}

// Start handles POST /quiz/{user}/start
func (h *QuizHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startQuizRequest
	if err := decodeBody(r, &req); err != nil || req.Specialty == "" {
		writeError(w, http.StatusBadRequest, "specialty is required")
		return
	}
	view, err := h.service.Start(r.Context(), mux.Vars(r)["user"], req.Specialty, req.Count)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newQuizResponse(view))
}

// Get handles GET /quiz/{user}
func (h *QuizHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Current(r.Context(), mux.Vars(r)["user"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newQuizResponse(view))
}

// Answer handles PUT /quiz/{user}/answers/{index}
func (h *QuizHandler) Answer(w http.ResponseWriter, r *http.Request) {
	index, ok := pathInt(r, "index")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid question index")
		return
	}
	var answer domain.Answer
	if err := decodeBody(r, &answer); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.service.Answer(r.Context(), mux.Vars(r)["user"], index, answer); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Finish handles POST /quiz/{user}/finish
func (h *QuizHandler) Finish(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Finish(r.Context(), mux.Vars(r)["user"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Abandon handles DELETE /quiz/{user}
func (h *QuizHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	h.service.Abandon(r.Context(), mux.Vars(r)["user"])
	w.WriteHeader(http.StatusNoContent)
}
