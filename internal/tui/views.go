package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/Veraticus/spendwise/internal/common"
	"github.com/Veraticus/spendwise/internal/model"
	"github.com/Veraticus/spendwise/internal/tui/components"
	"github.com/Veraticus/spendwise/internal/ui"
)

// View renders the UI. A panic while rendering shows the fallback screen
// instead of tearing down the terminal.
func (m Model) View() (out string) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("TUI render panicked", "panic", r)
			out = m.renderFallback(fmt.Errorf("panic: %v", r))
		}
	}()

	if m.quitting {
		return ""
	}
	if m.crash != nil {
		return m.renderFallback(m.crash)
	}

	var body string
	switch m.screen {
	case ScreenSplash:
		body = m.renderSplash()
	case ScreenLogin:
		body = m.renderLogin()
	default:
		body = m.renderMain()
	}

	sections := []string{}
	if m.offline {
		sections = append(sections, m.theme.Banner.Width(m.width).Render(ui.OfflineMessage))
	}
	if toasts := components.RenderToasts(m.theme, m.toasts, m.width); toasts != "" {
		sections = append(sections, toasts)
	}
	sections = append(sections, body)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderFallback is shown after a panic; the retry key reloads the screen.
func (m Model) renderFallback(err error) string {
	content := lipgloss.JoinVertical(
		lipgloss.Center,
		m.theme.StatusError.Render("Something went wrong"),
		"",
		m.theme.Faint.Render(err.Error()),
		"",
		m.theme.Normal.Render("Press r to try again or q to quit"),
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderSplash() string {
	percent := 1.0
	if m.config.SplashMinimum > 0 {
		percent = min(float64(m.config.Now().Sub(m.started))/float64(m.config.SplashMinimum), 1)
	}

	status := "Starting..."
	if m.gate.State() == ui.GateCheckingAuth {
		status = "Checking your session..."
	}

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		m.theme.Title.Render("SpendWise"),
		m.theme.Subtitle.Render("Track spending. Understand it."),
		"",
		m.splash.ViewAs(percent),
		"",
		m.spinner.View()+" "+m.theme.Faint.Render(status),
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderLogin() string {
	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		m.login.view(m.theme, m.spinner.View()),
	)
}

func (m Model) renderMain() string {
	sections := []string{m.renderTabs()}

	if indicator := m.pullIndicator(); indicator != "" && m.screen != ScreenTransactions {
		sections = append(sections, m.theme.StatusInfo.Render(indicator))
	}

	var content string
	switch m.screen {
	case ScreenDashboard:
		content = m.renderDashboard()
	case ScreenTransactions:
		content = m.renderTransactions()
	case ScreenAccounts:
		content = m.renderAccounts()
	case ScreenInsights:
		content = m.renderInsights()
	}
	sections = append(sections, content)

	if m.showHelp {
		sections = append(sections, "", m.help.FullHelpView(m.keymap.FullHelp()))
	} else {
		sections = append(sections, "", m.help.ShortHelpView(m.keymap.ShortHelp()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) pullIndicator() string {
	if pull := m.pulls[m.screen]; pull != nil {
		return pull.Indicator()
	}
	return ""
}

func (m Model) renderTabs() string {
	rendered := make([]string, 0, len(tabs)+1)
	for i, s := range tabs {
		label := fmt.Sprintf("%d %s", i+1, screenTitles[s])
		if s == m.screen {
			rendered = append(rendered, m.theme.ActiveTab.Render(label))
		} else {
			rendered = append(rendered, m.theme.Tab.Render(label))
		}
	}
	if user := m.queries.Session().State().User; user != nil {
		rendered = append(rendered, m.theme.Faint.Render("  "+user.Name))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

// renderLoadError shows a screen's last error when there is nothing cached to show.
func (m Model) renderLoadError(screen Screen) string {
	err := m.errs[screen]
	if err == nil {
		return m.spinner.View() + " Loading..."
	}
	return m.theme.StatusError.Render(common.UserMessage(err)) + "\n" +
		m.theme.Faint.Render("Press r to try again")
}

func (m Model) renderDashboard() string {
	d := m.dashboard
	if d == nil {
		return m.renderLoadError(ScreenDashboard)
	}

	month := d.Month
	if t, err := time.Parse("2006-01", d.Month); err == nil {
		month = t.Format("January 2006")
	}

	var total float64
	for _, a := range d.Accounts {
		total += a.Balance
	}

	sections := []string{
		m.theme.Title.Render(month),
		m.theme.Card.Render(m.stats.View()),
		m.theme.Bold.Render("Accounts") + "  " + m.theme.Faint.Render(fmt.Sprintf(
			"%d linked, %s total", len(d.Accounts), model.FormatAmount(total))),
		"",
		m.theme.Bold.Render("Recent transactions"),
	}

	if len(d.Recent) == 0 {
		sections = append(sections, m.theme.Faint.Render("Nothing yet."))
	}
	for _, txn := range d.Recent {
		sections = append(sections, m.renderTransactionLine(txn))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderTransactionLine(txn model.Transaction) string {
	amountStyle := m.theme.Credit
	if txn.Type == model.TypeDebit {
		amountStyle = m.theme.Debit
	}
	date := txn.Date
	if len(date) > 10 {
		date = date[:10]
	}
	return fmt.Sprintf("%s  %-32s %s",
		m.theme.Faint.Render(date),
		truncate(txn.Narration, 32),
		amountStyle.Render(model.FormatSigned(txn.Amount, txn.Type)),
	)
}

func (m Model) renderTransactions() string {
	if m.detail != nil {
		return m.detail.View()
	}
	if !m.transactionList.Loaded() && m.errs[ScreenTransactions] != nil {
		return m.renderLoadError(ScreenTransactions)
	}
	return m.transactionList.SetIndicator(m.pullIndicator()).View()
}

func (m Model) renderAccounts() string {
	sections := []string{m.theme.Title.Render("Linked accounts")}

	switch {
	case m.accounts == nil && m.errs[ScreenAccounts] != nil:
		sections = append(sections, m.renderLoadError(ScreenAccounts))
	case len(m.accounts) == 0:
		sections = append(sections, m.theme.Faint.Render("No linked accounts. Press a to link one."))
	}

	for i, a := range m.accounts {
		line := fmt.Sprintf("%-16s %-10s %s  %s  %s",
			truncate(a.InstitutionName, 16),
			a.AccountType,
			maskAccountNumber(a.AccountNumber),
			model.FormatAmount(a.Balance),
			m.theme.Faint.Render(lastSynced(a.LastSyncedAt, m.config.Now())),
		)
		if i == m.accountCursor {
			line = m.theme.Selected.Render("> " + line)
		} else {
			line = "  " + line
		}
		sections = append(sections, line)
	}

	if m.pendingUnlink != "" {
		sections = append(sections, "", m.theme.StatusWarning.Render("Unlink this account? Its transactions will be removed. (y to confirm)"))
	}
	if m.busy != "" {
		sections = append(sections, "", m.spinner.View()+" "+m.busy)
	}
	sections = append(sections, "", m.theme.Faint.Render("a link  s sync  d unlink"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func maskAccountNumber(number string) string {
	if len(number) <= 4 {
		return number
	}
	return "••••" + number[len(number)-4:]
}

func lastSynced(at *string, now time.Time) string {
	if at == nil || *at == "" {
		return "never synced"
	}
	t, err := time.Parse(time.RFC3339, *at)
	if err != nil {
		return "synced " + *at
	}
	return "synced " + humanize.RelTime(t, now, "ago", "from now")
}

func (m Model) renderInsights() string {
	if m.ai == nil {
		return m.renderLoadError(ScreenInsights)
	}
	ai := m.ai

	sections := []string{m.theme.Title.Render("AI insights")}
	if ai.insights.Summary != "" {
		sections = append(sections, m.theme.Normal.Render(ai.insights.Summary))
	}
	sections = append(sections, bullets(m.theme.StatusSuccess.Render("+"), ai.insights.Highlights)...)
	sections = append(sections, bullets(m.theme.StatusWarning.Render("!"), ai.insights.Warnings)...)
	sections = append(sections, bullets(m.theme.StatusInfo.Render("→"), ai.insights.Suggestions)...)

	if len(ai.advice.Recommendations) > 0 {
		sections = append(sections, "", m.theme.Bold.Render("Advice"))
		if ai.advice.Summary != "" {
			sections = append(sections, m.theme.Faint.Render(ai.advice.Summary))
		}
		for _, a := range ai.advice.Recommendations {
			sections = append(sections, fmt.Sprintf("%s %s: %s", m.severityBadge(a.Priority), a.Title, a.Description))
		}
	}

	if len(ai.predictions.ByCategory) > 0 {
		sections = append(sections, "", m.theme.Bold.Render(fmt.Sprintf(
			"Next month: %s predicted (%.0f%% confidence)",
			model.FormatAmount(ai.predictions.TotalPredicted), ai.predictions.Confidence*100)))
		for _, p := range ai.predictions.ByCategory {
			sections = append(sections, fmt.Sprintf("  %-20s %s %s", p.Category, model.FormatAmount(p.PredictedAmount), m.theme.Faint.Render(p.Trend)))
		}
	}

	if len(ai.anomalies) > 0 {
		sections = append(sections, "", m.theme.Bold.Render("Unusual transactions"))
		for _, a := range ai.anomalies {
			sections = append(sections, fmt.Sprintf("%s %s: %s", m.severityBadge(a.Severity), truncate(a.Transaction.Narration, 28), a.Reason))
		}
	}

	if err := m.errs[ScreenInsights]; err != nil {
		sections = append(sections, "", m.theme.StatusError.Render(common.UserMessage(err)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) severityBadge(s model.Severity) string {
	switch s {
	case model.SeverityHigh:
		return m.theme.StatusError.Render("[high]")
	case model.SeverityMedium:
		return m.theme.StatusWarning.Render("[medium]")
	default:
		return m.theme.StatusInfo.Render("[low]")
	}
}

func bullets(marker string, items []string) []string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, marker+" "+item)
	}
	return lines
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return strings.TrimSpace(string(r[:width-1])) + "…"
}
