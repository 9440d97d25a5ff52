package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/spendwise/internal/cache"
	"github.com/Veraticus/spendwise/internal/common"
	"github.com/Veraticus/spendwise/internal/model"
	"github.com/Veraticus/spendwise/internal/mono"
	"github.com/Veraticus/spendwise/internal/queries"
)

// requestTimeout bounds every background query.
const requestTimeout = 30 * time.Second

func (m Model) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(m.ctx, requestTimeout)
}

func refetchOpts(refetch bool) []cache.QueryOption {
	if refetch {
		return []cache.QueryOption{cache.WithRefetch()}
	}
	return nil
}

// loadDashboard loads the dashboard queries together.
func (m Model) loadDashboard(refetch bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()

		d, err := m.queries.LoadDashboard(ctx, m.config.Now(), refetch)
		return dashboardLoadedMsg{dashboard: d, err: err}
	}
}

// loadTransactions loads the first page of a list, or the accumulated list
// when it is already cached.
func (m Model) loadTransactions(filters model.TransactionFilters, refetch bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()

		filters.Page = 1
		page, err := m.queries.GetTransactions(ctx, filters, refetchOpts(refetch)...)
		return transactionsLoadedMsg{filters: filters, page: page, err: err}
	}
}

// loadMoreTransactions appends the next page to the list.
func (m Model) loadMoreTransactions(filters model.TransactionFilters) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()

		page, err := m.queries.NextTransactions(ctx, filters)
		return transactionsLoadedMsg{filters: filters, page: page, err: err, more: true}
	}
}

// loadTransaction fetches the full record behind a list row.
func (m Model) loadTransaction(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()

		txn, err := m.queries.GetTransaction(ctx, id)
		return transactionLoadedMsg{transaction: txn, err: err}
	}
}

// loadAccounts loads the linked accounts.
func (m Model) loadAccounts(refetch bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()

		accounts, err := m.queries.GetAccounts(ctx, refetchOpts(refetch)...)
		return accountsLoadedMsg{accounts: accounts, err: err}
	}
}

// loadAI loads the four AI queries together.
func (m Model) loadAI(refetch bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()

		return fetchAI(ctx, m.queries, refetch)
	}
}

func fetchAI(ctx context.Context, q *queries.Queries, refetch bool) aiLoadedMsg {
	opts := refetchOpts(refetch)
	var msg aiLoadedMsg
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		msg.advice, err = q.GetAdvice(gctx, opts...)
		return err
	})
	g.Go(func() (err error) {
		msg.predictions, err = q.GetPredictions(gctx, opts...)
		return err
	})
	g.Go(func() (err error) {
		msg.insights, err = q.GetAIInsights(gctx, opts...)
		return err
	})
	g.Go(func() (err error) {
		msg.anomalies, err = q.GetAnomalies(gctx, opts...)
		return err
	})
	msg.err = g.Wait()
	return msg
}

// submitLogin signs in with the form's credentials.
func (m Model) submitLogin(email, password string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()

		user, err := m.queries.Login(ctx, model.LoginCredentials{Email: email, Password: password})
		return loginResultMsg{user: user, err: err}
	}
}

// logout ends the session; the gate follows the store back to login.
func (m Model) logout() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()

		return loggedOutMsg{err: m.queries.Logout(ctx)}
	}
}

// syncAccount pulls fresh transactions for an account.
func (m Model) syncAccount(account model.BankAccount) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()

		resp, err := m.queries.Sync(ctx, account.ID)
		if err != nil {
			return accountActionMsg{action: "sync", err: err}
		}
		return accountActionMsg{
			action:  "sync",
			message: fmt.Sprintf("%s synced: %d new, %d updated",
				account.InstitutionName, resp.TransactionsAdded, resp.TransactionsUpdated),
		}
	}
}

// unlinkAccount removes an account.
func (m Model) unlinkAccount(account model.BankAccount) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()

		if _, err := m.queries.Unlink(ctx, account.ID); err != nil {
			return accountActionMsg{action: "unlink", err: err}
		}
		return accountActionMsg{action: "unlink", message: account.InstitutionName + " unlinked"}
	}
}

// linkAccount runs the Mono Connect flow in the browser and exchanges the
// resulting code with the backend.
func (m Model) linkAccount() tea.Cmd {
	return func() tea.Msg {
		server, err := mono.NewLinkServer(m.config.MonoKey, mono.WithLogger(m.logger))
		if err != nil {
			return accountActionMsg{action: "link", err: err}
		}

		ctx, cancel := context.WithTimeout(m.ctx, m.config.LinkTimeout)
		defer cancel()

		code, err := server.Run(ctx, func(url string) {
			m.notifier.Info("Finish linking in your browser: " + url)
			if m.config.OpenBrowser {
				mono.OpenBrowser(url)
			}
		})
		switch {
		case errors.Is(err, mono.ErrClosed):
			m.notifier.Info("Bank linking cancelled")
			return accountActionMsg{action: "link"}
		case err != nil:
			return accountActionMsg{action: "link", err: err}
		}

		resp, err := m.queries.Link(ctx, code)
		if err != nil {
			return accountActionMsg{action: "link", err: common.NewUserError("Failed to link account", err)}
		}
		return accountActionMsg{action: "link", message: resp.InstitutionName + " linked"}
	}
}

// refresh runs the screen's pull-to-refresh action, which toasts the outcome.
func (m Model) refresh(screen Screen) tea.Cmd {
	pull := m.pulls[screen]
	if pull == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()

		return refreshDoneMsg{screen: screen, err: pull.Refresh(ctx)}
	}
}

// recovered turns a panic inside a command into a message for the fallback screen.
func recovered(cmd tea.Cmd) tea.Cmd {
	if cmd == nil {
		return nil
	}
	return func() (msg tea.Msg) {
		defer func() {
			if r := recover(); r != nil {
				msg = panicMsg{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		return cmd()
	}
}
