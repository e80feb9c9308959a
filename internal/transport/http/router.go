package http

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"ecn-prep-service/internal/app"
)

// Container holds the services the router exposes.
type Container struct {
	Quiz        *app.QuizService
	Competition *app.CompetitionService
	Cases       *app.CaseService
	Exams       *app.ExamService
	Hub         *app.LeaderboardHub
	Recorder    *app.Recorder
	Banks       app.BankRepository
}

// NewRouter wires every endpoint. All per-user routes are keyed by the
// free-text {user} path variable.
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	quiz := NewQuizHandler(c.Quiz)
	competition := NewCompetitionHandler(c.Competition)
	cases := NewCaseHandler(c.Cases)
	exams := NewExamHandler(c.Exams)
	progress := NewProgressHandler(c.Hub, c.Recorder.Store(), c.Recorder.Badges(), c.Banks)
	ws := NewWSHandler(c.Hub)

	r.Use(logMiddleware)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods("GET")
	r.HandleFunc("/specialties", progress.Specialties).Methods("GET")

	r.HandleFunc("/quiz/{user}/start", quiz.Start).Methods("POST")
	r.HandleFunc("/quiz/{user}", quiz.Get).Methods("GET")
	r.HandleFunc("/quiz/{user}/answers/{index}", quiz.Answer).Methods("PUT")
	r.HandleFunc("/quiz/{user}/finish", quiz.Finish).Methods("POST")
	r.HandleFunc("/quiz/{user}", quiz.Abandon).Methods("DELETE")

	r.HandleFunc("/competition/{user}/start", competition.Start).Methods("POST")
	r.HandleFunc("/competition/{user}", competition.Get).Methods("GET")
	r.HandleFunc("/competition/{user}/answer", competition.Answer).Methods("POST")
	r.HandleFunc("/competition/{user}/skip", competition.Skip).Methods("POST")
	r.HandleFunc("/competition/{user}/goto", competition.GoTo).Methods("POST")
	r.HandleFunc("/competition/{user}/finish", competition.Finish).Methods("POST")
	r.HandleFunc("/competition/{user}", competition.Abandon).Methods("DELETE")

	r.HandleFunc("/cases/{user}/load", cases.Load).Methods("POST")
	r.HandleFunc("/cases/{user}", cases.Get).Methods("GET")
	r.HandleFunc("/cases/{user}/steps/{index}", cases.Record).Methods("PUT")
	r.HandleFunc("/cases/{user}/move", cases.Move).Methods("POST")
	r.HandleFunc("/cases/{user}/goto", cases.GoTo).Methods("POST")
	r.HandleFunc("/cases/{user}/finish", cases.Finish).Methods("POST")
	r.HandleFunc("/cases/{user}/restart", cases.Restart).Methods("POST")
	r.HandleFunc("/cases/{user}", cases.Discard).Methods("DELETE")

	r.HandleFunc("/exams/{user}/start", exams.Start).Methods("POST")
	r.HandleFunc("/exams/{user}", exams.Get).Methods("GET")
	r.HandleFunc("/exams/{user}/sections/{section}", exams.Section).Methods("GET")
	r.HandleFunc("/exams/{user}/answers/{index}", exams.Answer).Methods("PUT")
	r.HandleFunc("/exams/{user}/finish", exams.Finish).Methods("POST")
	r.HandleFunc("/exams/{user}/report.pdf", exams.Report).Methods("GET")
	r.HandleFunc("/exams/{user}", exams.Abandon).Methods("DELETE")

	r.HandleFunc("/leaderboard", progress.Leaderboard).Methods("GET")
	r.HandleFunc("/leaderboard/exams", progress.ExamLeaderboard).Methods("GET")
	r.HandleFunc("/users/{user}/exam-stats", progress.ExamStats).Methods("GET")
	r.HandleFunc("/users/{user}/progress", progress.Progress).Methods("GET")
	r.HandleFunc("/users/{user}/badges", progress.Badges).Methods("GET")

	r.HandleFunc("/ws/leaderboard", ws.ServeWS).Methods("GET")

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || r.URL.Path == "/ws/leaderboard" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
	})
}
