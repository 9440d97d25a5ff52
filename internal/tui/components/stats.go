package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/spendwise/internal/model"
	"github.com/Veraticus/spendwise/internal/tui/themes"
)

// MaxCategoryBars limits the category breakdown on the dashboard.
const MaxCategoryBars = 5

// StatsPanelModel renders a month of spending: totals, the change against
// the previous month and the largest categories.
type StatsPanelModel struct {
	theme       themes.Theme
	insight     *model.MonthlyInsight
	comparison  *model.MonthComparison
	progressBar progress.Model
	width       int
}

// NewStatsPanelModel creates a new stats panel.
func NewStatsPanelModel(theme themes.Theme) StatsPanelModel {
	prog := progress.New(
		progress.WithSolidFill(string(theme.Primary)),
		progress.WithWidth(30),
	)
	prog.ShowPercentage = false
	prog.EmptyColor = string(theme.Border)

	return StatsPanelModel{
		theme:       theme,
		progressBar: prog,
		width:       60,
	}
}

// SetData replaces the month being shown.
func (m StatsPanelModel) SetData(insight *model.MonthlyInsight, comparison *model.MonthComparison) StatsPanelModel {
	m.insight = insight
	m.comparison = comparison
	return m
}

// Resize fits the panel into width columns.
func (m StatsPanelModel) Resize(width int) StatsPanelModel {
	m.width = width
	m.progressBar.Width = min(max(width-40, 10), 40)
	return m
}

// View renders the stats panel.
func (m StatsPanelModel) View() string {
	if m.insight == nil {
		return m.theme.Faint.Render("No insights for this month yet.")
	}

	sections := []string{
		m.renderTotals(),
	}
	if m.comparison != nil {
		sections = append(sections, m.renderComparison())
	}
	if len(m.insight.CategoryData) > 0 {
		sections = append(sections, "", m.renderCategories())
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m StatsPanelModel) renderTotals() string {
	spent := m.theme.Debit.Render(model.FormatAmount(m.insight.TotalSpending))
	income := m.theme.Credit.Render(model.FormatAmount(m.insight.TotalIncome))
	line := fmt.Sprintf("Spent %s   Income %s", spent, income)
	if m.insight.TopCategory != "" {
		line += "   Top " + themes.GetCategoryIcon(m.insight.TopCategory) + " " + m.insight.TopCategory
	}
	return line
}

func (m StatsPanelModel) renderComparison() string {
	return fmt.Sprintf("vs %s: spending %s, income %s",
		m.comparison.PreviousMonth.Month,
		m.renderChange(m.comparison.SpendingChange, true),
		m.renderChange(m.comparison.IncomeChange, false),
	)
}

// renderChange colors a percentage change; rising spending is bad news.
func (m StatsPanelModel) renderChange(change float64, spending bool) string {
	text := fmt.Sprintf("%+.1f%%", change)
	good := change <= 0
	if !spending {
		good = change >= 0
	}
	if good {
		return m.theme.Credit.Render(text)
	}
	return m.theme.Debit.Render(text)
}

func (m StatsPanelModel) renderCategories() string {
	categories := m.insight.CategoryData
	if len(categories) > MaxCategoryBars {
		categories = categories[:MaxCategoryBars]
	}

	lines := make([]string, 0, len(categories)+1)
	lines = append(lines, m.theme.Subtitle.Render("Top categories"))
	for _, c := range categories {
		name := m.theme.CategoryIcon.Render(themes.GetCategoryIcon(c.Category)) + " " + padRight(c.Category, 18)
		bar := m.progressBar.ViewAs(c.Percentage / 100)
		lines = append(lines, fmt.Sprintf("%s %s %5.1f%% %s", name, bar, c.Percentage, model.FormatAmount(c.Amount)))
	}
	return strings.Join(lines, "\n")
}

func padRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
