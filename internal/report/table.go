package report

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-runewidth"

	"ecn-prep-service/internal/domain"
)

// maxNameWidth bounds the user column in terminal cells.
const maxNameWidth = 24

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	podiumStyle = cellStyle.Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
)

// LeaderboardTable renders quiz standings as a bordered terminal table.
func LeaderboardTable(entries []domain.LeaderboardEntry) string {
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{strconv.Itoa(i + 1), fitName(e.User), strconv.Itoa(e.AggregateScore), strconv.Itoa(e.AttemptCount)}
	}
	return render([]string{"#", "Utilisateur", "Score", "Tentatives"}, rows)
}

// ExamLeaderboardTable renders simulation standings.
func ExamLeaderboardTable(entries []domain.ExamLeaderboardEntry) string {
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			fitName(e.User),
			fmt.Sprintf("%.1f%%", e.BestPercentage),
			fmt.Sprintf("%.1f%%", e.AvgPercentage),
			strconv.Itoa(e.AttemptCount),
		}
	}
	return render([]string{"#", "Utilisateur", "Meilleur", "Moyenne", "Simulations"}, rows)
}

func render(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#4A4A4A"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row < 3:
				return podiumStyle
			default:
				return cellStyle
			}
		})
	return t.String()
}

// fitName truncates by display width so wide runes keep columns aligned.
func fitName(name string) string {
	return runewidth.Truncate(name, maxNameWidth, "…")
}
