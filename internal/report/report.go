// Package report renders finished simulations and leaderboards for humans:
// a PDF review of an exam and a terminal table of a leaderboard.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"ecn-prep-service/internal/domain"
)

// ExamReport is everything printed on an exam review.
type ExamReport struct {
	User        string
	Summary     domain.ExamSummary
	Result      domain.ExamScoreResult
	Elapsed     time.Duration
	TimedOut    bool
	GeneratedAt time.Time
}

// WriteExamPDF writes an A4 review of a finished simulation to w: a header
// with the score, then one block per question with the user's answer, the
// correct answer and the feedback.
func WriteExamPDF(w io.Writer, r ExamReport) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	// core fonts are cp1252; translate so French accents survive
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(r.Summary.Title), false)
	pdf.SetAuthor("ecn-prep-service", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 10, tr(r.Summary.Title), "", "L", false)
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 11)
	status := "Non admis"
	if r.Result.Passed {
		status = "Admis"
	}
	header := fmt.Sprintf("Candidat : %s\nSession : %s\nScore : %.1f / %.0f (%.1f %%)\nMention : %s (%s)\nDurée : %s",
		r.User, r.Summary.SessionID, r.Result.RawScore, r.Result.MaxScore, r.Result.Percentage,
		r.Result.Grade, status, formatDuration(r.Elapsed))
	if r.TimedOut {
		header += " (temps écoulé)"
	}
	if !r.GeneratedAt.IsZero() {
		header += "\nGénéré le " + r.GeneratedAt.Format("02/01/2006 15:04")
	}
	pdf.MultiCell(0, 6, tr(header), "", "L", false)
	pdf.Ln(4)

	for _, d := range r.Result.Details {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.MultiCell(0, 6, tr(fmt.Sprintf("Question %d (%.1f pt)", d.Number, d.Score)), "", "L", false)
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, tr(d.Preview), "", "L", false)
		lines := fmt.Sprintf("Votre réponse : %s\nBonne réponse : %s\n%s",
			joinOrDash(d.UserAnswer), joinOrDash(d.CorrectAnswer), d.Feedback)
		if d.Explanation != "" {
			lines += "\n" + d.Explanation
		}
		pdf.MultiCell(0, 5, tr(lines), "", "L", false)
		pdf.Ln(3)
	}

	return pdf.Output(w)
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%dmin %02ds", int(d.Minutes()), int(d.Seconds())%60)
}
