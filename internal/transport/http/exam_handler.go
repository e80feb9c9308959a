package http

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"ecn-prep-service/internal/app"
	"ecn-prep-service/internal/domain"
	"ecn-prep-service/internal/report"
)

// ExamHandler serves timed exam simulations.
type ExamHandler struct {
	service *app.ExamService
	now     func() time.Time
}

func NewExamHandler(service *app.ExamService) *ExamHandler {
	return &ExamHandler{service: service, now: time.Now}
}

type sectionResponse struct {
	domain.Section
	Offset    int            `json:"offset"`
	Questions []questionView `json:"questions"`
}

// Start handles POST /exams/{user}/start
func (h *ExamHandler) Start(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Start(r.Context(), mux.Vars(r)["user"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// Get handles GET /exams/{user}
func (h *ExamHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Status(r.Context(), mux.Vars(r)["user"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Section handles GET /exams/{user}/sections/{section}. Question indices of
// the section start at offset.
func (h *ExamHandler) Section(w http.ResponseWriter, r *http.Request) {
	idx, ok := pathInt(r, "section")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid section")
		return
	}
	session, err := h.service.Session(r.Context(), mux.Vars(r)["user"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if idx < 0 || idx >= len(session.Sections) {
		writeError(w, http.StatusUnprocessableEntity, "section out of range")
		return
	}
	sec := session.Sections[idx]
	writeJSON(w, http.StatusOK, sectionResponse{
		Section:   sec,
		Offset:    sec.Start,
		Questions: newQuestionViews(session.SectionQuestions(idx)),
	})
}

// Answer handles PUT /exams/{user}/answers/{index}
func (h *ExamHandler) Answer(w http.ResponseWriter, r *http.Request) {
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
	st, err := h.service.Answer(r.Context(), mux.Vars(r)["user"], index, answer)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Finish handles POST /exams/{user}/finish
func (h *ExamHandler) Finish(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Finish(r.Context(), mux.Vars(r)["user"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Report handles GET /exams/{user}/report.pdf
func (h *ExamHandler) Report(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	out, err := h.service.Result(r.Context(), user)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var buf bytes.Buffer
	err = report.WriteExamPDF(&buf, report.ExamReport{
		User:        user,
		Summary:     out.Summary,
		Result:      out.Result,
		Elapsed:     out.Elapsed,
		TimedOut:    out.TimedOut,
		GeneratedAt: h.now(),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not render report")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+out.Summary.SessionID+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Abandon handles DELETE /exams/{user}
func (h *ExamHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	h.service.Abandon(r.Context(), mux.Vars(r)["user"])
	w.WriteHeader(http.StatusNoContent)
}
