package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"ecn-prep-service/internal/domain"
)

type errorPayload struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorPayload{Message: msg})
}

// writeDomainError maps sentinel errors: absent data is 404, state conflicts
// are 409 and out-of-range indices are 422.
func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrNotStarted),
		errors.Is(err, domain.ErrNoQuestions),
		errors.Is(err, domain.ErrEmptySession),
		errors.Is(err, domain.ErrCaseNotFound),
		errors.Is(err, domain.ErrCaseNotLoaded):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrCaseFinished),
		errors.Is(err, domain.ErrCaseNotFinished),
		errors.Is(err, domain.ErrRunFinished),
		errors.Is(err, domain.ErrAlreadyAnswered):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStepOutOfRange),
		errors.Is(err, domain.ErrQuestionOutOfRange):
		return http.StatusUnprocessableEntity
	default:
		log.Printf("request failed: %v", err)
		return http.StatusInternalServerError
	}
}

// decodeBody decodes an optional JSON body; an empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}

func pathInt(r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(mux.Vars(r)[name])
	return n, err == nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
