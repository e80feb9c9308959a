package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ecn-prep-service/internal/config"
)

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Competition.Duration = "5m"
	cfg.Competition.PerSpecialtyCap = 3
	cfg.Exam.Sections = 2
	cfg.Exam.PassingScore = 60
	cfg.Exam.Distribution = map[string]int{"cardiologie": 4}

	comp := competitionOptions(cfg)
	if comp.Duration != 5*time.Minute || comp.PerSpecialtyCap != 3 || comp.QuestionCap != 50 {
		t.Fatalf("unexpected competition options %+v", comp)
	}
	exam := examOptions(cfg)
	if exam.Generator.SectionCount != 2 || exam.PassingThreshold != 60 || exam.Generator.Distribution["cardiologie"] != 4 {
		t.Fatalf("unexpected exam options %+v", exam)
	}
	if len(exam.Generator.Breaks) != 2 || exam.Generator.Breaks[1] != 40*time.Minute {
		t.Fatalf("unexpected breaks %v", exam.Generator.Breaks)
	}
}

func TestBankCheckCountsDataDir(t *testing.T) {
	dir := t.TempDir()
	raw := `{"quizzes":[{"question":"Q","options":[{"text":"A","correct":true},{"text":"B"}]}],"clinical_cases":[]}`
	if err := os.WriteFile(filepath.Join(dir, "cardiologie.json"), []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", filepath.Join(dir, "absent.yaml"), "bank", "check", "--dir", dir})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("bank check: %v", err)
	}
	if !strings.Contains(out.String(), "1 specialties, 1 questions, 0 clinical cases") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestBankCheckRejectsQuestionWithoutAnswer(t *testing.T) {
	dir := t.TempDir()
	raw := `{"quizzes":[{"question":"Q","options":[{"text":"A"},{"text":"B"}]}]}`
	if err := os.WriteFile(filepath.Join(dir, "neurologie.json"), []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", filepath.Join(dir, "absent.yaml"), "bank", "check", "--dir", dir})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected validation error")
	}
}
