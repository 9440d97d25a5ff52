package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/spendwise/internal/model"
	"github.com/Veraticus/spendwise/internal/tui/themes"
)

// LoadMoreThreshold is how close to the last row the cursor gets before the
// next page is requested.
const LoadMoreThreshold = 5

// TransactionListModel is an infinitely scrolling transaction table.
type TransactionListModel struct {
	theme       themes.Theme
	indicator   string
	filters     model.TransactionFilters
	page        model.Page[model.Transaction]
	table       table.Model
	width       int
	height      int
	loaded      bool
	loadingMore bool
}

// NewTransactionList creates an empty list for the given filters.
func NewTransactionList(filters model.TransactionFilters, theme themes.Theme) TransactionListModel {
	t := table.New(
		table.WithColumns(transactionColumns(80)),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.Border).
		BorderBottom(true).
		Bold(false)
	s.Selected = theme.Selected
	t.SetStyles(s)

	filters.Page = 1
	return TransactionListModel{
		theme:   theme,
		filters: filters,
		table:   t,
		width:   80,
		height:  20,
	}
}

func transactionColumns(width int) []table.Column {
	narration := max(width-10-22-16-10, 16)
	return []table.Column{
		{Title: "Date", Width: 10},
		{Title: "Narration", Width: narration},
		{Title: "Category", Width: 22},
		{Title: "Amount", Width: 16},
	}
}

// Filters returns the filters identifying the list being shown.
func (m TransactionListModel) Filters() model.TransactionFilters {
	return m.filters
}

// Page returns the accumulated page.
func (m TransactionListModel) Page() model.Page[model.Transaction] {
	return m.page
}

// Loaded reports whether any page has arrived for the current filters.
func (m TransactionListModel) Loaded() bool {
	return m.loaded
}

// AtTop reports whether the first row is selected, which is where a pull
// gesture may begin.
func (m TransactionListModel) AtTop() bool {
	return m.table.Cursor() == 0
}

// SetPage replaces the rows with an accumulated page.
func (m TransactionListModel) SetPage(page model.Page[model.Transaction]) TransactionListModel {
	m.page = page
	m.loaded = true
	m.loadingMore = false

	rows := make([]table.Row, 0, len(page.Data))
	for _, txn := range page.Data {
		rows = append(rows, transactionRow(txn))
	}
	m.table.SetRows(rows)
	if cursor := m.table.Cursor(); cursor >= len(rows) {
		m.table.SetCursor(max(len(rows)-1, 0))
	}
	return m
}

// LoadFailed clears the pending page request so scrolling can retry it.
func (m TransactionListModel) LoadFailed() TransactionListModel {
	m.loadingMore = false
	return m
}

// SetIndicator sets the pull-to-refresh line shown above the table.
func (m TransactionListModel) SetIndicator(indicator string) TransactionListModel {
	m.indicator = indicator
	return m
}

// Resize fits the table to the space it is given.
func (m TransactionListModel) Resize(width, height int) TransactionListModel {
	m.width = width
	m.height = height
	m.table.SetColumns(transactionColumns(width))
	m.table.SetWidth(width)
	m.table.SetHeight(max(height-4, 3))
	return m
}

func transactionRow(txn model.Transaction) table.Row {
	date := txn.Date
	if len(date) > 10 {
		date = date[:10]
	}
	narration := txn.Narration
	if txn.IsAnomaly {
		narration = "! " + narration
	}
	return table.Row{
		date,
		narration,
		themes.GetCategoryIcon(txn.Category) + " " + txn.Category,
		model.FormatSigned(txn.Amount, txn.Type),
	}
}

// Update handles messages.
func (m TransactionListModel) Update(msg tea.Msg) (TransactionListModel, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "enter":
		cursor := m.table.Cursor()
		if cursor < len(m.page.Data) {
			txn := m.page.Data[cursor]
			return m, func() tea.Msg {
				return TransactionSelectedMsg{Transaction: txn, Index: cursor}
			}
		}
		return m, nil

	case "f":
		next := m.filters
		next.Page = 1
		switch next.Type {
		case "":
			next.Type = model.TypeDebit
		case model.TypeDebit:
			next.Type = model.TypeCredit
		default:
			next.Type = ""
		}
		m.filters = next
		m.page = model.Page[model.Transaction]{}
		m.loaded = false
		m.loadingMore = false
		m.table.SetRows(nil)
		m.table.SetCursor(0)
		return m, func() tea.Msg {
			return FilterChangedMsg{Filters: next}
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(keyMsg)
	if more := m.maybeLoadMore(); more != nil {
		return m, tea.Batch(cmd, more)
	}
	return m, cmd
}

func (m *TransactionListModel) maybeLoadMore() tea.Cmd {
	if !m.page.HasMore || m.loadingMore {
		return nil
	}
	if m.table.Cursor() < len(m.page.Data)-LoadMoreThreshold {
		return nil
	}
	m.loadingMore = true
	filters := m.filters
	return func() tea.Msg {
		return LoadMoreMsg{Filters: filters}
	}
}

// View renders the transaction list.
func (m TransactionListModel) View() string {
	sections := []string{m.renderHeader()}
	if m.indicator != "" {
		sections = append(sections, m.theme.StatusInfo.Render(m.indicator))
	}

	switch {
	case !m.loaded:
		sections = append(sections, m.theme.Faint.Render("Loading transactions..."))
	case len(m.page.Data) == 0:
		sections = append(sections, m.theme.Faint.Render("No transactions yet. Link an account to get started."))
	default:
		sections = append(sections, m.table.View(), m.renderFooter())
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m TransactionListModel) renderHeader() string {
	filter := "all"
	if m.filters.Type != "" {
		filter = string(m.filters.Type)
	}

	parts := []string{m.theme.Bold.Render("Transactions")}
	if m.loaded {
		parts = append(parts, m.theme.Faint.Render(fmt.Sprintf("%d of %d", len(m.page.Data), m.page.Total)))
	}
	parts = append(parts, m.theme.Faint.Render("filter: "+filter+" (f)"))
	return strings.Join(parts, "  ")
}

func (m TransactionListModel) renderFooter() string {
	switch {
	case m.loadingMore:
		return m.theme.StatusInfo.Render("Loading more...")
	case m.page.HasMore:
		return m.theme.Faint.Render("Scroll down for more")
	default:
		return m.theme.Faint.Render("End of list")
	}
}
