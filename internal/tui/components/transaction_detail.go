package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/spendwise/internal/model"
	"github.com/Veraticus/spendwise/internal/tui/themes"
)

// TransactionDetailModel represents the transaction detail view.
type TransactionDetailModel struct {
	theme       themes.Theme
	transaction model.Transaction
	width       int
	height      int
}

var detailBack = key.NewBinding(
	key.WithKeys("esc", "backspace"),
	key.WithHelp("esc", "back to list"),
)

// NewTransactionDetailModel creates a new transaction detail model.
func NewTransactionDetailModel(txn model.Transaction, theme themes.Theme) TransactionDetailModel {
	return TransactionDetailModel{
		theme:       theme,
		transaction: txn,
	}
}

// Transaction returns the transaction being shown.
func (m TransactionDetailModel) Transaction() model.Transaction {
	return m.transaction
}

// SetTransaction replaces the transaction, as when a fresher copy arrives.
func (m TransactionDetailModel) SetTransaction(txn model.Transaction) TransactionDetailModel {
	m.transaction = txn
	return m
}

// Update handles messages.
func (m TransactionDetailModel) Update(msg tea.Msg) (TransactionDetailModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, detailBack) {
		return m, func() tea.Msg {
			return BackToListMsg{}
		}
	}
	return m, nil
}

// View renders the transaction detail view.
func (m TransactionDetailModel) View() string {
	txn := m.transaction
	labelStyle := m.theme.Bold.
		Width(16).
		Align(lipgloss.Right)

	row := func(label, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top,
			labelStyle.Render(label+": "),
			m.theme.Normal.Render(value),
		)
	}

	amountStyle := m.theme.Credit
	if txn.Type == model.TypeDebit {
		amountStyle = m.theme.Debit
	}

	info := []string{
		row("Date", txn.Date),
		lipgloss.JoinHorizontal(lipgloss.Top,
			labelStyle.Render("Amount: "),
			amountStyle.Render(model.FormatSigned(txn.Amount, txn.Type)),
		),
		row("Narration", txn.Narration),
		row("Category", themes.GetCategoryIcon(txn.Category)+" "+txn.Category),
		row("Balance after", model.FormatAmount(txn.Balance)),
		row("Account", txn.AccountID),
	}

	if txn.CategorizationMethod != "" {
		method := txn.CategorizationMethod
		if txn.AIConfidence != nil {
			method += fmt.Sprintf(" (%.0f%% confident)", *txn.AIConfidence*100)
		}
		info = append(info, row("Categorized by", method))
	}

	sections := []string{
		m.theme.Title.Render("Transaction Details"),
		m.theme.Card.Render(strings.Join(info, "\n")),
	}

	if txn.IsAnomaly {
		anomaly := []string{m.theme.StatusWarning.Render("Unusual transaction")}
		if txn.AnomalySeverity != nil {
			anomaly = append(anomaly, row("Severity", string(*txn.AnomalySeverity)))
		}
		if txn.AnomalyReason != nil {
			anomaly = append(anomaly, row("Reason", *txn.AnomalyReason))
		}
		sections = append(sections, m.theme.Card.Render(strings.Join(anomaly, "\n")))
	}

	sections = append(sections, m.theme.Faint.Render("Press esc to return to the list"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// Resize updates the component dimensions.
func (m *TransactionDetailModel) Resize(width, height int) {
	m.width = width
	m.height = height
}
