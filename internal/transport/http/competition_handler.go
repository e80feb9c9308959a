package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"ecn-prep-service/internal/app"
)

// CompetitionHandler serves the timed competition mode.
type CompetitionHandler struct {
	service *app.CompetitionService
}

func NewCompetitionHandler(service *app.CompetitionService) *CompetitionHandler {
	return &CompetitionHandler{service: service}
}

type competitionAnswerRequest struct {
	Index    *int   `json:"index"`
	Selected string `json:"selected"`
}

type gotoRequest struct {
	Index int `json:"index"`
}

type competitionStatusResponse struct {
	Cursor        int                     `json:"cursor"`
	Total         int                     `json:"total"`
	Question      *questionView           `json:"question,omitempty"`
	Answered      []bool                  `json:"answered"`
	AnsweredCount int                     `json:"answeredCount"`
	Score         float64                 `json:"score"`
	RemainingSecs int                     `json:"remainingSeconds"`
	Finished      bool                    `json:"finished"`
	Outcome       *app.CompetitionOutcome `json:"outcome,omitempty"`
}

func newCompetitionStatus(st app.CompetitionStatus) competitionStatusResponse {
	out := competitionStatusResponse{
		Cursor:        st.Cursor,
		Total:         st.Total,
		Answered:      st.Answered,
		AnsweredCount: st.AnsweredCount,
		Score:         st.Score,
		RemainingSecs: int(st.Remaining / time.Second),
		Finished:      st.Finished,
		Outcome:       st.Outcome,
	}
	if st.Question != nil {
		q := newQuestionView(*st.Question)
		out.Question = &q
	}
	return out
}

// Start handles POST /competition/{user}/start
func (h *CompetitionHandler) Start(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Start(r.Context(), mux.Vars(r)["user"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCompetitionStatus(st))
}

// Get handles GET /competition/{user}
func (h *CompetitionHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Status(r.Context(), mux.Vars(r)["user"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCompetitionStatus(st))
}

// Answer handles POST /competition/{user}/answer. Without an index the
// current question is validated.
func (h *CompetitionHandler) Answer(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	var req competitionAnswerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	index := 0
	if req.Index != nil {
		index = *req.Index
	} else {
		st, err := h.service.Status(r.Context(), user)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		index = st.Cursor
	}
	res, err := h.service.Answer(r.Context(), user, index, req.Selected)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"delta": res.Delta, "status": newCompetitionStatus(res.Status)})
}

// Skip handles POST /competition/{user}/skip
func (h *CompetitionHandler) Skip(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Skip(r.Context(), mux.Vars(r)["user"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCompetitionStatus(st))
}

// GoTo handles POST /competition/{user}/goto
func (h *CompetitionHandler) GoTo(w http.ResponseWriter, r *http.Request) {
	var req gotoRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	st, err := h.service.GoTo(r.Context(), mux.Vars(r)["user"], req.Index)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCompetitionStatus(st))
}

// Finish handles POST /competition/{user}/finish
func (h *CompetitionHandler) Finish(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Finish(r.Context(), mux.Vars(r)["user"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Abandon handles DELETE /competition/{user}
func (h *CompetitionHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	h.service.Abandon(r.Context(), mux.Vars(r)["user"])
	w.WriteHeader(http.StatusNoContent)
}
