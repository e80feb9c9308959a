package bank

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"ecn-prep-service/internal/domain"
)

const cardioJSON = `{
  "quizzes": [
    {
      "question": "Première intention dans le STEMI ?",
      "type": "single",
      "options": [
        {"text": "Thrombolyse", "correct": false},
        {"text": "Angioplastie primaire", "correct": true}
      ],
      "explanation": "Angioplastie si délai < 90 minutes."
    },
    {
      "question": "Facteurs de risque ?",
      "type": "multiple",
      "options": [
        {"text": "Tabac", "correct": true},
        {"text": "HTA", "correct": true},
        {"text": "Myopie", "correct": false}
      ]
    }
  ],
  "clinical_cases": [
    {
      "title": "Douleur thoracique chez un homme de 55 ans",
      "difficulty": "Intermédiaire",
      "steps": [
        {"title": "Présentation", "content": "Monsieur D., 55 ans."},
        {"title": "Examens", "content": "...", "type": "multiple_choice", "question": "Examen prioritaire ?",
         "options": ["ECG", "Scanner"], "correct_answer": "ECG"},
        {"title": "Traitement", "content": "...", "type": "multiple", "question": "Traitements ?",
         "options": ["Aspirine", "Héparine", "AINS"], "correct_options": ["Aspirine", "Héparine"]},
        {"title": "Synthèse", "content": "...", "type": "text", "question": "Votre analyse ?"}
      ],
      "solution": "STEMI antérieur."
    }
  ]
}`

func writeBankDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "cardiologie.json"), []byte(cardioJSON), 0o644); err != nil {
		t.Fatalf("write bank: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "neurologie.json"), []byte(`{"quizzes": []}`), 0o644); err != nil {
		t.Fatalf("write bank: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatalf("write readme: %v", err)
	}
	return dir
}

func TestLoadDirParsesSpecialtyFiles(t *testing.T) {
	data, err := NewDirLoader(writeBankDir(t)).LoadBank(context.Background())
	if err != nil {
		t.Fatalf("load dir: %v", err)
	}
	if len(data) != 2 {
		t.Fatalf("expected 2 specialties, got %d", len(data))
	}
	cardio := data["cardiologie"]
	if len(cardio.Quizzes) != 2 || cardio.Quizzes[1].Kind != domain.KindMultiple {
		t.Fatalf("unexpected quizzes %+v", cardio.Quizzes)
	}
	steps := cardio.ClinicalCases[0].Steps
	want := []domain.StepKind{domain.StepNarrative, domain.StepSingleChoice, domain.StepMultiChoice, domain.StepFreeText}
	for i, kind := range want {
		if steps[i].Kind != kind {
			t.Fatalf("step %d: expected %s, got %s", i, kind, steps[i].Kind)
		}
	}
	if err := data.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadDirMissingDirectoryIsEmpty(t *testing.T) {
	data, err := LoadDir(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("expected empty bank")
	}
}

func TestValidateRejectsQuestionWithoutCorrectOption(t *testing.T) {
	data := Data{"x": {Quizzes: []domain.Question{{Text: "?", Options: []domain.Option{{Text: "a"}}}}}}
	if err := data.Validate(); !errors.Is(err, domain.ErrNoCorrectOption) {
		t.Fatalf("expected ErrNoCorrectOption, got %v", err)
	}
}

func TestIndexSampling(t *testing.T) {
	data, err := LoadDir(writeBankDir(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	idx := NewIndexWithRand(data, rand.New(rand.NewSource(1)))

	specialties := idx.ListSpecialties()
	if len(specialties) != 2 || specialties[0] != "cardiologie" {
		t.Fatalf("unexpected specialties %v", specialties)
	}
	if got := idx.SampleQuestions("cardiologie", 10); len(got) != 2 {
		t.Fatalf("expected shortage to return 2 questions, got %d", len(got))
	}
	if got := idx.SampleQuestions("cardiologie", 1); len(got) != 1 || got[0].Specialty != "cardiologie" {
		t.Fatalf("unexpected sample %+v", got)
	}
	if got := idx.SampleQuestions("unknown", 5); len(got) != 0 {
		t.Fatalf("expected nothing for unknown specialty")
	}
	if _, ok := idx.GetClinicalCase("neurologie"); ok {
		t.Fatalf("expected no case for neurologie")
	}
	c, ok := idx.GetClinicalCase("cardiologie")
	if !ok || c.Specialty != "cardiologie" {
		t.Fatalf("expected cardiology case, got %+v", c)
	}
	if c2, ok := idx.CaseAt("cardiologie", 7); !ok || c2.Title != c.Title {
		t.Fatalf("expected modulo lookup to wrap")
	}
	st := idx.Stats()
	if st.Specialties != 2 || st.Questions != 2 || st.ClinicalCases != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestCaseAtWrapsAnyPosition(t *testing.T) {
	idx := NewIndex(Data{
		"cardiologie": {ClinicalCases: []domain.ClinicalCase{{Title: "A"}, {Title: "B"}, {Title: "C"}}},
	})
	cases := []struct {
		pos  int
		want string
	}{
		{0, "A"},
		{4, "B"},
		{-1, "C"},
		{-3, "A"},
		{math.MinInt, "B"},
		{math.MaxInt, "B"},
	}
	for _, tc := range cases {
		c, ok := idx.CaseAt("cardiologie", tc.pos)
		if !ok || c.Title != tc.want {
			t.Fatalf("CaseAt(%d): expected %s, got %+v", tc.pos, tc.want, c)
		}
	}
	if _, ok := idx.CaseAt("neurologie", 0); ok {
		t.Fatalf("expected no case for empty specialty")
	}
}

func TestIndexDataRoundTrip(t *testing.T) {
	data, err := LoadDir(writeBankDir(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	again := NewIndex(data).Data()
	if len(again["cardiologie"].Quizzes) != 2 || again["cardiologie"].Quizzes[0].ID != "cardiologie-0" {
		t.Fatalf("unexpected data %+v", again["cardiologie"])
	}
}

func TestChainLoaderSkipsEmptyBanks(t *testing.T) {
	full := Data{"cardiologie": {Quizzes: []domain.Question{{Text: "Q", Options: []domain.Option{{Text: "A", Correct: true}}}}}}
	data, err := ChainLoader{NewStaticLoader(Data{}), NewStaticLoader(full)}.LoadBank(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(data) != 1 {
		t.Fatalf("expected fallback bank, got %v", data)
	}

	empty, err := ChainLoader{NewStaticLoader(nil)}.LoadBank(context.Background())
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty bank, got %v (%v)", empty, err)
	}
}
