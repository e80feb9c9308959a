package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"ecn-prep-service/internal/app"
	"ecn-prep-service/internal/domain"
)

// CaseHandler serves clinical case attempts.
type CaseHandler struct {
	service *app.CaseService
}

func NewCaseHandler(service *app.CaseService) *CaseHandler {
	return &CaseHandler{service: service}
}

type loadCaseRequest struct {
	Specialty string `json:"specialty"`
}

type stepAnswerRequest struct {
	Value domain.CaseValue `json:"value"`
}

type moveRequest struct {
	Delta int `json:"delta"`
}

type caseResponse struct {
	AttemptID  string                  `json:"attemptId,omitempty"`
	State      string                  `json:"state"`
	Specialty  string                  `json:"specialty,omitempty"`
	Title      string                  `json:"title,omitempty"`
	Difficulty string                  `json:"difficulty,omitempty"`
	Cursor     int                     `json:"cursor"`
	TotalSteps int                     `json:"totalSteps"`
	Step       *stepView               `json:"step,omitempty"`
	Answer     *domain.CaseValue       `json:"answer,omitempty"`
	Answers    []domain.CaseAnswer     `json:"answers"`
	Result     *domain.CaseScoreResult `json:"result,omitempty"`
	Solution   string                  `json:"solution,omitempty"`
}

func newCaseResponse(v app.CaseView) caseResponse {
	out := caseResponse{
		AttemptID:  v.AttemptID,
		State:      v.State,
		Specialty:  v.Specialty,
		Title:      v.Title,
		Difficulty: v.Difficulty,
		Cursor:     v.Cursor,
		TotalSteps: v.TotalSteps,
		Answer:     v.Answer,
		Answers:    v.Answers,
		Result:     v.Result,
		Solution:   v.Solution,
	}
	if v.Step != nil {
		out.Step = newStepView(*v.Step)
	}
	return out
}

// Load handles POST /cases/{user}/load
func (h *CaseHandler) Load(w http.ResponseWriter, r *http.Request) {
	var req loadCaseRequest
	if err := decodeBody(r, &req); err != nil || req.Specialty == "" {
		writeError(w, http.StatusBadRequest, "specialty is required")
		return
	}
	view, err := h.service.Load(r.Context(), mux.Vars(r)["user"], req.Specialty)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCaseResponse(view))
}

// Get handles GET /cases/{user}
func (h *CaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.View(r.Context(), mux.Vars(r)["user"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCaseResponse(view))
}

// Record handles PUT /cases/{user}/steps/{index}
func (h *CaseHandler) Record(w http.ResponseWriter, r *http.Request) {
	index, ok := pathInt(r, "index")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid step index")
		return
	}
	var req stepAnswerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	view, err := h.service.Record(r.Context(), mux.Vars(r)["user"], index, req.Value)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCaseResponse(view))
}

// Move handles POST /cases/{user}/move
func (h *CaseHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	view, err := h.service.Move(r.Context(), mux.Vars(r)["user"], req.Delta)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCaseResponse(view))
}

// GoTo handles POST /cases/{user}/goto
func (h *CaseHandler) GoTo(w http.ResponseWriter, r *http.Request) {
	var req gotoRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	view, err := h.service.GoTo(r.Context(), mux.Vars(r)["user"], req.Index)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCaseResponse(view))
}

// Finish handles POST /cases/{user}/finish
func (h *CaseHandler) Finish(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Finish(r.Context(), mux.Vars(r)["user"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Restart handles POST /cases/{user}/restart
func (h *CaseHandler) Restart(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Restart(r.Context(), mux.Vars(r)["user"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCaseResponse(view))
}

// Discard handles DELETE /cases/{user}
func (h *CaseHandler) Discard(w http.ResponseWriter, r *http.Request) {
	h.service.Discard(r.Context(), mux.Vars(r)["user"])
	w.WriteHeader(http.StatusNoContent)
}
