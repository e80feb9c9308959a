package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ecn-prep-service/internal/app"
	"ecn-prep-service/internal/bank"
	"ecn-prep-service/internal/domain"
	"ecn-prep-service/internal/generator"
	"ecn-prep-service/internal/infra/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	idx := bank.NewIndexWithRand(sampleBank(), rand.New(rand.NewSource(1)))
	banks := app.FixedBank{Bank: idx}
	sessions := memory.NewSessionStore()
	store := memory.NewProgressStore()
	hub := app.NewLeaderboardHub(store, 10)
	recorder := app.NewRecorder(store, hub)

	examOpts := app.DefaultExamOptions()
	examOpts.Generator = generator.ExamOptions{
		Distribution: map[string]int{"cardiologie": 4},
		SectionCount: 2,
		SectionSize:  2,
		Duration:     time.Hour,
		Title:        "Simulation ECN",
	}

	server := httptest.NewServer(NewRouter(&Container{
		Quiz:        app.NewQuizService(sessions, banks, recorder),
		Competition: app.NewCompetitionService(sessions, banks, recorder, app.DefaultCompetitionOptions()),
		Cases:       app.NewCaseService(sessions, banks, recorder),
		Exams:       app.NewExamService(sessions, banks, recorder, examOpts),
		Hub:         hub,
		Recorder:    recorder,
		Banks:       banks,
	}))
	t.Cleanup(server.Close)
	return server
}

func do(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func TestQuizFlowHidesAnswers(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, "POST", srv.URL+"/quiz/alice/start", map[string]any{"specialty": "cardiologie", "count": 4})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}
	if strings.Contains(string(body), `"correct"`) {
		t.Fatalf("quiz payload leaks correct flags: %s", body)
	}
	var started quizResponse
	if err := json.Unmarshal(body, &started); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(started.Questions) != 4 {
		t.Fatalf("expected 4 questions, got %d", len(started.Questions))
	}

	for i, q := range started.Questions {
		// sampleBank puts the right answer last
		right := q.Options[len(q.Options)-1]
		resp, body := do(t, "PUT", fmt.Sprintf("%s/quiz/alice/answers/%d", srv.URL, i), domain.SingleAnswer(right))
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("answer %d: %d %s", i, resp.StatusCode, body)
		}
	}
	if resp, _ := do(t, "PUT", srv.URL+"/quiz/alice/answers/9", domain.SingleAnswer("x")); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for out-of-range answer, got %d", resp.StatusCode)
	}

	resp, body = do(t, "POST", srv.URL+"/quiz/alice/finish", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("finish: %d %s", resp.StatusCode, body)
	}
	var out app.QuizOutcome
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if out.Result.Score != 4 || !out.Saved {
		t.Fatalf("unexpected outcome %+v", out)
	}

	resp, body = do(t, "GET", srv.URL+"/leaderboard?specialty=cardiologie", nil)
	var lb domain.Leaderboard
	_ = json.Unmarshal(body, &lb)
	if resp.StatusCode != http.StatusOK || len(lb.Entries) != 1 || lb.Entries[0].AggregateScore != 4 {
		t.Fatalf("unexpected leaderboard %d %s", resp.StatusCode, body)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	srv := newTestServer(t)

	if resp, _ := do(t, "POST", srv.URL+"/quiz/bob/finish", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing quiz, got %d", resp.StatusCode)
	}
	if resp, _ := do(t, "POST", srv.URL+"/quiz/bob/start", map[string]any{"specialty": "unknown"}); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for empty specialty, got %d", resp.StatusCode)
	}
	if resp, _ := do(t, "POST", srv.URL+"/quiz/bob/start", map[string]any{}); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without specialty, got %d", resp.StatusCode)
	}

	resp, body := do(t, "POST", srv.URL+"/competition/bob/start", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("competition start: %d %s", resp.StatusCode, body)
	}
	zero := 0
	if resp, body := do(t, "POST", srv.URL+"/competition/bob/answer", map[string]any{"index": zero, "selected": "Wrong"}); resp.StatusCode != http.StatusOK {
		t.Fatalf("first answer: %d %s", resp.StatusCode, body)
	}
	if resp, _ := do(t, "POST", srv.URL+"/competition/bob/answer", map[string]any{"index": zero, "selected": "Wrong"}); resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on re-answer, got %d", resp.StatusCode)
	}
}

func TestClinicalCaseFlow(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, "POST", srv.URL+"/cases/carol/load", map[string]any{"specialty": "cardiologie"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("load: %d %s", resp.StatusCode, body)
	}
	if strings.Contains(string(body), "correct_answer") {
		t.Fatalf("case payload leaks the expected answer: %s", body)
	}

	if resp, body := do(t, "PUT", srv.URL+"/cases/carol/steps/1", map[string]any{"value": "ECG"}); resp.StatusCode != http.StatusOK {
		t.Fatalf("record: %d %s", resp.StatusCode, body)
	}
	if resp, _ := do(t, "PUT", srv.URL+"/cases/carol/steps/7", map[string]any{"value": "ECG"}); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown step, got %d", resp.StatusCode)
	}
	if resp, _ := do(t, "POST", srv.URL+"/cases/carol/restart", nil); resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 restarting an unfinished case, got %d", resp.StatusCode)
	}

	resp, body = do(t, "POST", srv.URL+"/cases/carol/finish", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("finish: %d %s", resp.StatusCode, body)
	}
	var out app.CaseOutcome
	_ = json.Unmarshal(body, &out)
	if out.Result.ScorePercentage != 100 || out.Solution == "" {
		t.Fatalf("unexpected case outcome %+v", out)
	}

	if resp, _ := do(t, "PUT", srv.URL+"/cases/carol/steps/1", map[string]any{"value": "Scanner"}); resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 after finish, got %d", resp.StatusCode)
	}
	if resp, _ := do(t, "DELETE", srv.URL+"/cases/carol", nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 on discard, got %d", resp.StatusCode)
	}
	if resp, _ := do(t, "GET", srv.URL+"/cases/carol", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after discard, got %d", resp.StatusCode)
	}
}

func TestExamFlowAndReport(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, "POST", srv.URL+"/exams/dave/start", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start: %d %s", resp.StatusCode, body)
	}
	if resp, _ := do(t, "GET", srv.URL+"/exams/dave/report.pdf", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before finishing, got %d", resp.StatusCode)
	}

	resp, body = do(t, "GET", srv.URL+"/exams/dave/sections/0", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("section: %d %s", resp.StatusCode, body)
	}
	var sec sectionResponse
	if err := json.Unmarshal(body, &sec); err != nil {
		t.Fatalf("decode section: %v", err)
	}
	if len(sec.Questions) != 2 || sec.Offset != 0 {
		t.Fatalf("unexpected section %+v", sec)
	}
	if resp, _ := do(t, "GET", srv.URL+"/exams/dave/sections/5", nil); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown section, got %d", resp.StatusCode)
	}

	q := sec.Questions[0]
	if resp, body := do(t, "PUT", srv.URL+"/exams/dave/answers/0", domain.SingleAnswer(q.Options[len(q.Options)-1])); resp.StatusCode != http.StatusOK {
		t.Fatalf("answer: %d %s", resp.StatusCode, body)
	}
	if resp, body := do(t, "POST", srv.URL+"/exams/dave/finish", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("finish: %d %s", resp.StatusCode, body)
	}
	if resp, _ := do(t, "PUT", srv.URL+"/exams/dave/answers/1", domain.SingleAnswer("x")); resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 after finish, got %d", resp.StatusCode)
	}

	resp, body = do(t, "GET", srv.URL+"/exams/dave/report.pdf", nil)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "application/pdf" {
		t.Fatalf("report: %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !bytes.HasPrefix(body, []byte("%PDF-")) {
		t.Fatalf("expected PDF body")
	}

	resp, body = do(t, "GET", srv.URL+"/users/dave/exam-stats", nil)
	var st domain.ExamStats
	_ = json.Unmarshal(body, &st)
	if resp.StatusCode != http.StatusOK || st.AttemptCount != 1 {
		t.Fatalf("unexpected stats %d %s", resp.StatusCode, body)
	}
	resp, body = do(t, "GET", srv.URL+"/users/dave/badges", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "simulateur") {
		t.Fatalf("expected simulateur badge, got %d %s", resp.StatusCode, body)
	}
}

func TestUserProgress(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, "GET", srv.URL+"/users/gina/progress", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"bySpecialty":[]`) {
		t.Fatalf("expected empty progress, got %d %s", resp.StatusCode, body)
	}

	resp, body = do(t, "POST", srv.URL+"/quiz/gina/start", map[string]any{"specialty": "cardiologie", "count": 2})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start: %d %s", resp.StatusCode, body)
	}
	var started quizResponse
	if err := json.Unmarshal(body, &started); err != nil {
		t.Fatalf("decode: %v", err)
	}
	right := started.Questions[0].Options[len(started.Questions[0].Options)-1]
	do(t, "PUT", srv.URL+"/quiz/gina/answers/0", domain.SingleAnswer(right))
	if resp, body := do(t, "POST", srv.URL+"/quiz/gina/finish", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("finish: %d %s", resp.StatusCode, body)
	}

	resp, body = do(t, "GET", srv.URL+"/users/gina/progress", nil)
	var p domain.UserProgress
	if err := json.Unmarshal(body, &p); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	if resp.StatusCode != http.StatusOK || p.User != "gina" || len(p.BySpecialty) != 1 || len(p.Timeline) != 1 {
		t.Fatalf("unexpected progress %d %s", resp.StatusCode, body)
	}
	if sp := p.BySpecialty[0]; sp.Specialty != "cardiologie" || sp.AttemptCount != 1 || sp.TotalScore != 1 {
		t.Fatalf("unexpected specialty breakdown %+v", sp)
	}
}

func TestSpecialties(t *testing.T) {
	srv := newTestServer(t)
	resp, body := do(t, "GET", srv.URL+"/specialties", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "cardiologie") {
		t.Fatalf("unexpected specialties %d %s", resp.StatusCode, body)
	}
}

func sampleBank() bank.Data {
	questions := make([]domain.Question, 6)
	for i := range questions {
		questions[i] = domain.Question{
			Text: fmt.Sprintf("Question %d ?", i),
			Options: []domain.Option{
				{Text: "Wrong"},
				{Text: fmt.Sprintf("Right %d", i), Correct: true},
			},
		}
	}
	return bank.Data{
		"cardiologie": {
			Quizzes: questions,
			ClinicalCases: []domain.ClinicalCase{
				{
					Title:    "Douleur thoracique",
					Solution: "SCA ST+",
					Steps: []domain.Step{
						{Title: "Présentation", Content: "Homme de 58 ans.", Kind: domain.StepNarrative},
						{
							Title:         "Examen",
							Kind:          domain.StepSingleChoice,
							Question:      "Premier examen ?",
							Options:       []string{"ECG", "Scanner"},
							CorrectAnswer: "ECG",
						},
					},
				},
			},
		},
	}
}
