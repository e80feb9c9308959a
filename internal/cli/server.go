package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ecn-prep-service/internal/app"
	"ecn-prep-service/internal/config"
	transport "ecn-prep-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

type idleEvicter interface {
	EvictIdle(now time.Time, maxIdle time.Duration) int
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	d, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	hub := app.NewLeaderboardHub(d.store, cfg.Leaderboard.Limit)
	recorder := app.NewRecorder(d.store, hub)
	router := transport.NewRouter(&transport.Container{
		Quiz:        app.NewQuizService(d.sessions, d.banks, recorder),
		Competition: app.NewCompetitionService(d.sessions, d.banks, recorder, competitionOptions(cfg)),
		Cases:       app.NewCaseService(d.sessions, d.banks, recorder),
		Exams:       app.NewExamService(d.sessions, d.banks, recorder, examOptions(cfg)),
		Hub:         hub,
		Recorder:    recorder,
		Banks:       d.banks,
	})

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	if evicter, ok := d.sessions.(idleEvicter); ok {
		go runJanitor(janitorCtx, evicter, config.TTLDuration(cfg.Session.IdleTTL, 2*time.Hour))
	}

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting ecn prep service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// runJanitor evicts abandoned sessions every quarter of maxIdle.
func runJanitor(ctx context.Context, store idleEvicter, maxIdle time.Duration) {
	interval := maxIdle / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := store.EvictIdle(now, maxIdle); n > 0 {
				log.Printf("evicted %d idle sessions", n)
			}
		}
	}
}

func competitionOptions(cfg config.Config) app.CompetitionOptions {
	opts := app.DefaultCompetitionOptions()
	opts.Duration = config.TTLDuration(cfg.Competition.Duration, opts.Duration)
	if cfg.Competition.QuestionCap > 0 {
		opts.QuestionCap = cfg.Competition.QuestionCap
	}
	if cfg.Competition.PerSpecialtyCap > 0 {
		opts.PerSpecialtyCap = cfg.Competition.PerSpecialtyCap
	}
	return opts
}

func examOptions(cfg config.Config) app.ExamOptions {
	opts := app.DefaultExamOptions()
	gen := &opts.Generator
	gen.Duration = config.TTLDuration(cfg.Exam.Duration, gen.Duration)
	if cfg.Exam.Sections > 0 {
		gen.SectionCount = cfg.Exam.Sections
	}
	if cfg.Exam.SectionSize > 0 {
		gen.SectionSize = cfg.Exam.SectionSize
	}
	if len(cfg.Exam.Distribution) > 0 {
		gen.Distribution = cfg.Exam.Distribution
	}
	if breaks := config.Durations(cfg.Exam.Breaks); len(breaks) > 0 {
		gen.Breaks = breaks
	}
	if cfg.Exam.PassingScore > 0 {
		opts.PassingThreshold = cfg.Exam.PassingScore
	}
	return opts
}
