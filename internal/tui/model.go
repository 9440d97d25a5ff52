package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/spendwise/internal/api"
	"github.com/Veraticus/spendwise/internal/cache"
	"github.com/Veraticus/spendwise/internal/common"
	"github.com/Veraticus/spendwise/internal/model"
	"github.com/Veraticus/spendwise/internal/queries"
	"github.com/Veraticus/spendwise/internal/tui/components"
	"github.com/Veraticus/spendwise/internal/tui/themes"
	"github.com/Veraticus/spendwise/internal/ui"
)

// Screen is one page of the application.
type Screen int

// Screens.
const (
	ScreenSplash Screen = iota
	ScreenLogin
	ScreenDashboard
	ScreenTransactions
	ScreenAccounts
	ScreenInsights
)

var screenPaths = map[Screen]string{
	ScreenLogin:        ui.LoginPath,
	ScreenDashboard:    ui.DashboardPath,
	ScreenTransactions: "/transactions",
	ScreenAccounts:     "/accounts",
	ScreenInsights:     "/insights",
}

var screenTitles = map[Screen]string{
	ScreenDashboard:    "Dashboard",
	ScreenTransactions: "Transactions",
	ScreenAccounts:     "Accounts",
	ScreenInsights:     "Insights",
}

// tabs are the signed-in screens in tab order.
var tabs = []Screen{ScreenDashboard, ScreenTransactions, ScreenAccounts, ScreenInsights}

func screenForPath(path string) Screen {
	for s, p := range screenPaths {
		if p == path {
			return s
		}
	}
	return ScreenDashboard
}

// Deps are the shared services the TUI drives. Run starts the gate, so it
// must not be started by the caller.
type Deps struct {
	Queries      *queries.Queries
	Gate         *ui.Gate
	Notifier     *ui.Notifier
	Connectivity *ui.Connectivity
}

// Model holds the main TUI state.
type Model struct {
	ctx             context.Context
	started         time.Time
	crash           error
	logger          *slog.Logger
	queries         *queries.Queries
	gate            *ui.Gate
	notifier        *ui.Notifier
	connectivity    *ui.Connectivity
	dashboard       *queries.Dashboard
	ai              *aiLoadedMsg
	detail          *components.TransactionDetailModel
	filters         *atomic.Pointer[model.TransactionFilters]
	pulls           map[Screen]*ui.PullToRefresh
	watches         map[Screen]func()
	errs            map[Screen]error
	send            func(tea.Msg)
	pendingUnlink   string
	busy            string
	theme           themes.Theme
	accounts        []model.BankAccount
	toasts          []ui.Toast
	keymap          KeyMap
	help            help.Model
	config          Config
	spinner         spinner.Model
	splash          progress.Model
	login           loginForm
	transactionList components.TransactionListModel
	stats           components.StatsPanelModel
	accountCursor   int
	screen          Screen
	from            Screen
	width           int
	height          int
	offline         bool
	showHelp        bool
	quitting        bool
}

// New creates the root model.
func New(ctx context.Context, deps Deps, opts ...Option) (Model, error) {
	if deps.Queries == nil {
		return Model{}, fmt.Errorf("queries are required")
	}
	if deps.Gate == nil {
		return Model{}, fmt.Errorf("gate is required")
	}
	if deps.Notifier == nil {
		return Model{}, fmt.Errorf("notifier is required")
	}
	if deps.Connectivity == nil {
		deps.Connectivity = ui.NewConnectivity(deps.Notifier)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = cfg.Theme.StatusInfo

	bar := progress.New(progress.WithSolidFill(string(cfg.Theme.Primary)), progress.WithWidth(30))
	bar.ShowPercentage = false

	filters := &atomic.Pointer[model.TransactionFilters]{}
	first := model.TransactionFilters{Page: 1, Limit: queries.DefaultPageSize}
	filters.Store(&first)

	m := Model{
		ctx:             ctx,
		started:         cfg.Now(),
		config:          cfg,
		theme:           cfg.Theme,
		keymap:          DefaultKeyMap(),
		logger:          cfg.Logger.With("component", "tui"),
		queries:         deps.Queries,
		gate:            deps.Gate,
		notifier:        deps.Notifier,
		connectivity:    deps.Connectivity,
		filters:         filters,
		watches:         make(map[Screen]func()),
		errs:            make(map[Screen]error),
		help:            help.New(),
		spinner:         sp,
		splash:          bar,
		login:           newLoginForm(),
		transactionList: components.NewTransactionList(first, cfg.Theme),
		stats:           components.NewStatsPanelModel(cfg.Theme),
		screen:          ScreenSplash,
		from:            ScreenDashboard,
		width:           cfg.Width,
		height:          cfg.Height,
		showHelp:        cfg.ShowHelp,
		offline:         deps.Connectivity.Offline(),
	}
	m.pulls = m.newPulls()
	m.resize()
	return m, nil
}

// newPulls builds one pull-to-refresh per data screen. Each refetches the
// screen's queries; the reload that follows reads the fresh cache.
func (m Model) newPulls() map[Screen]*ui.PullToRefresh {
	q, now, filters := m.queries, m.config.Now, m.filters
	opts := []ui.PullOption{ui.WithPullLimits(ui.DefaultPullMax, ui.DefaultPullThreshold)}

	return map[Screen]*ui.PullToRefresh{
		ScreenDashboard: ui.NewPullToRefresh(func(ctx context.Context) error {
			_, err := q.RefreshDashboard(ctx, now())
			return err
		}, m.notifier, opts...),
		ScreenTransactions: ui.NewPullToRefresh(func(ctx context.Context) error {
			_, err := q.GetTransactions(ctx, *filters.Load(), cache.WithRefetch())
			return err
		}, m.notifier, opts...),
		ScreenAccounts: ui.NewPullToRefresh(func(ctx context.Context) error {
			_, err := q.GetAccounts(ctx, cache.WithRefetch())
			return err
		}, m.notifier, opts...),
		ScreenInsights: ui.NewPullToRefresh(func(ctx context.Context) error {
			return fetchAI(ctx, q, true).err
		}, m.notifier, opts...),
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, func() tea.Msg { return gateChangedMsg{} })
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (result tea.Model, cmd tea.Cmd) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("TUI update panicked", "panic", r)
			m.crash = fmt.Errorf("panic: %v", r)
			result, cmd = m, nil
		}
	}()

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m, m.handleMouse(msg)

	case spinner.TickMsg:
		var tick tea.Cmd
		m.spinner, tick = m.spinner.Update(msg)
		return m, tick

	case panicMsg:
		m.logger.Error("TUI command panicked", "error", msg.err)
		m.crash = msg.err
		return m, nil

	case gateChangedMsg:
		return m, m.syncGate()

	case toastsChangedMsg:
		m.toasts = m.notifier.Toasts()
		return m, nil

	case connectivityChangedMsg:
		m.offline = m.connectivity.Offline()
		return m, nil

	case pullChangedMsg:
		return m, nil

	case cacheUpdatedMsg:
		return m, m.reload(msg.screen)
	}

	return m.handleData(msg)
}

// handleData applies query results and action outcomes.
func (m Model) handleData(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardLoadedMsg:
		if msg.dashboard != nil {
			m.dashboard = msg.dashboard
			m.stats = m.stats.SetData(msg.dashboard.Insight, msg.dashboard.Comparison)
		}
		m.failed(ScreenDashboard, msg.err)

	case transactionsLoadedMsg:
		if msg.filters.ListKey() != m.transactionList.Filters().ListKey() {
			return m, nil
		}
		if m.failed(ScreenTransactions, msg.err) {
			m.transactionList = m.transactionList.LoadFailed()
			return m, nil
		}
		m.transactionList = m.transactionList.SetPage(msg.page)

	case transactionLoadedMsg:
		if msg.err != nil {
			m.logger.Debug("Failed to load transaction", "error", msg.err)
			return m, nil
		}
		if m.detail != nil && m.detail.Transaction().ID == msg.transaction.ID {
			detail := m.detail.SetTransaction(msg.transaction)
			m.detail = &detail
		}

	case accountsLoadedMsg:
		if !m.failed(ScreenAccounts, msg.err) {
			m.accounts = msg.accounts
			m.accountCursor = min(m.accountCursor, max(len(m.accounts)-1, 0))
		}

	case aiLoadedMsg:
		m.ai = &msg
		m.failed(ScreenInsights, msg.err)

	case loginResultMsg:
		if msg.err != nil {
			m.login = m.login.failed(msg.err)
			return m, nil
		}
		m.login = m.login.reset()

	case loggedOutMsg:
		if msg.err != nil {
			m.logger.Warn("Failed to clear cached data on logout", "error", msg.err)
		}

	case accountActionMsg:
		m.busy = ""
		if msg.err != nil {
			m.notifier.Error(common.UserMessage(msg.err))
		} else if msg.message != "" {
			m.notifier.Success(msg.message)
		}
		return m, m.reload(m.screen)

	case refreshDoneMsg:
		return m, m.reload(msg.screen)

	case components.TransactionSelectedMsg:
		detail := components.NewTransactionDetailModel(msg.Transaction, m.theme)
		detail.Resize(m.width, m.contentHeight())
		m.detail = &detail
		return m, recovered(m.loadTransaction(msg.Transaction.ID))

	case components.BackToListMsg:
		m.detail = nil

	case components.LoadMoreMsg:
		return m, recovered(m.loadMoreTransactions(msg.Filters))

	case components.FilterChangedMsg:
		filters := msg.Filters
		m.filters.Store(&filters)
		return m, m.enter(ScreenTransactions)
	}

	return m, nil
}

// failed records a load error for screen. Network and server errors are
// toasted once; a rejected session is left to the gate.
func (m *Model) failed(screen Screen, err error) bool {
	if err == nil {
		delete(m.errs, screen)
		return false
	}
	m.errs[screen] = err
	if errors.Is(err, api.ErrUnauthorized) || errors.Is(err, context.Canceled) {
		return true
	}
	m.logger.Debug("Query failed", "screen", screenTitles[screen], "error", err)
	m.notifier.Error(common.UserMessage(err))
	return true
}

// syncGate follows the auth gate: the splash stays until it resolves, a
// signed-out session goes to login and a signed-in one leaves it.
func (m *Model) syncGate() tea.Cmd {
	state := m.gate.State()
	switch state {
	case ui.GateAuthenticated:
		if m.screen != ScreenSplash && m.screen != ScreenLogin {
			return nil
		}
		d := m.gate.Route(screenPaths[ScreenLogin], false, screenPaths[m.from])
		return m.show(screenForPath(d.Redirect))

	case ui.GateUnauthenticated:
		if m.screen == ScreenLogin {
			return nil
		}
		if m.screen != ScreenSplash {
			m.from = m.screen
		}
		m.signedOut()
		m.screen = ScreenLogin
		return m.login.inputs[loginEmail].Focus()
	}
	return nil
}

// signedOut drops everything loaded for the previous session.
func (m *Model) signedOut() {
	m.stopWatches()
	m.dashboard = nil
	m.ai = nil
	m.accounts = nil
	m.detail = nil
	m.pendingUnlink = ""
	m.busy = ""
	m.errs = make(map[Screen]error)
	m.stats = m.stats.SetData(nil, nil)
	m.transactionList = components.NewTransactionList(*m.filters.Load(), m.theme).Resize(m.width, m.contentHeight())
	m.login = m.login.reset()
}

// navigate moves to a protected screen through the gate.
func (m *Model) navigate(target Screen) tea.Cmd {
	d := m.gate.Route(screenPaths[target], true, "")
	switch {
	case d.Pending:
		return nil
	case !d.Allowed():
		m.from = target
		return m.syncGate()
	}
	return m.show(target)
}

func (m *Model) show(target Screen) tea.Cmd {
	m.screen = target
	m.detail = nil
	m.pendingUnlink = ""
	return m.enter(target)
}

// enter loads a screen's data from the cache, fetching what is missing or stale.
func (m *Model) enter(screen Screen) tea.Cmd {
	switch screen {
	case ScreenTransactions:
		filters := *m.filters.Load()
		if m.transactionList.Filters().ListKey() != filters.ListKey() {
			m.transactionList = components.NewTransactionList(filters, m.theme).Resize(m.width, m.contentHeight())
		}
		m.watchTransactions(filters)
	case ScreenAccounts:
		m.watchAccounts()
	}
	return m.reload(screen)
}

// reload reads a screen's queries without forcing a refetch.
func (m Model) reload(screen Screen) tea.Cmd {
	switch screen {
	case ScreenDashboard:
		return recovered(m.loadDashboard(false))
	case ScreenTransactions:
		return recovered(m.loadTransactions(*m.filters.Load(), false))
	case ScreenAccounts:
		return recovered(m.loadAccounts(false))
	case ScreenInsights:
		return recovered(m.loadAI(false))
	}
	return nil
}

// watchTransactions keeps the visible list subscribed so an invalidation
// elsewhere, such as an unlink, refetches it and redraws.
func (m *Model) watchTransactions(filters model.TransactionFilters) {
	if m.send == nil {
		return
	}
	if stop, ok := m.watches[ScreenTransactions]; ok {
		stop()
	}
	filters.Page = 1
	send := m.send
	m.watches[ScreenTransactions] = cache.Watch(m.ctx, m.queries.Cache(), m.queries.Transactions, filters, func(e cache.Entry) {
		if e.Status == cache.StatusFulfilled && !e.Stale {
			send(cacheUpdatedMsg{screen: ScreenTransactions})
		}
	})
}

func (m *Model) watchAccounts() {
	if m.send == nil {
		return
	}
	if _, ok := m.watches[ScreenAccounts]; ok {
		return
	}
	send := m.send
	m.watches[ScreenAccounts] = cache.Watch(m.ctx, m.queries.Cache(), m.queries.Accounts, queries.None{}, func(e cache.Entry) {
		if e.Status == cache.StatusFulfilled && !e.Stale {
			send(cacheUpdatedMsg{screen: ScreenAccounts})
		}
	})
}

// stopWatches ends background refetching of the visible lists.
func (m Model) stopWatches() {
	for s, stop := range m.watches {
		stop()
		delete(m.watches, s)
	}
}

// handleKey dispatches key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keymap.ForceQuit) {
		m.quitting = true
		return m, tea.Quit
	}

	if m.crash != nil {
		switch {
		case key.Matches(msg, m.keymap.Retry):
			m.crash = nil
			return m, m.enter(m.screen)
		case key.Matches(msg, m.keymap.Quit):
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	switch m.screen {
	case ScreenSplash:
		if key.Matches(msg, m.keymap.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case ScreenLogin:
		if msg.String() == "esc" {
			m.quitting = true
			return m, tea.Quit
		}
		form, cmd, submit := m.login.update(msg)
		m.login = form
		if submit {
			return m, tea.Batch(cmd, recovered(m.submitLogin(m.login.email(), m.login.password())))
		}
		return m, cmd
	}

	if m.pendingUnlink != "" {
		return m.confirmUnlink(msg)
	}

	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keymap.Help):
		m.showHelp = !m.showHelp
		return m, nil
	case key.Matches(msg, m.keymap.Dismiss):
		if n := len(m.toasts); n > 0 {
			m.notifier.Dismiss(m.toasts[n-1].ID)
		}
		return m, nil
	case key.Matches(msg, m.keymap.Logout):
		// Logout invalidates every tag; watched lists must not refetch with the old token.
		m.stopWatches()
		return m, recovered(m.logout())
	case key.Matches(msg, m.keymap.Refresh) && m.detail == nil:
		return m, m.startRefresh()
	case key.Matches(msg, m.keymap.NextTab):
		return m, m.navigate(m.tabOffset(1))
	case key.Matches(msg, m.keymap.PrevTab):
		return m, m.navigate(m.tabOffset(-1))
	case key.Matches(msg, m.keymap.Dashboard):
		return m, m.navigate(ScreenDashboard)
	case key.Matches(msg, m.keymap.Transactions):
		return m, m.navigate(ScreenTransactions)
	case key.Matches(msg, m.keymap.Accounts):
		return m, m.navigate(ScreenAccounts)
	case key.Matches(msg, m.keymap.Insights):
		return m, m.navigate(ScreenInsights)
	}

	switch m.screen {
	case ScreenTransactions:
		if m.detail != nil {
			detail, cmd := m.detail.Update(msg)
			m.detail = &detail
			return m, cmd
		}
		var cmd tea.Cmd
		m.transactionList, cmd = m.transactionList.Update(msg)
		return m, cmd

	case ScreenAccounts:
		return m.handleAccountKey(msg)
	}
	return m, nil
}

func (m Model) tabOffset(delta int) Screen {
	for i, s := range tabs {
		if s == m.screen {
			return tabs[(i+delta+len(tabs))%len(tabs)]
		}
	}
	return ScreenDashboard
}

// startRefresh runs the current screen's refresh unless one is running.
func (m Model) startRefresh() tea.Cmd {
	pull := m.pulls[m.screen]
	if pull == nil || pull.State() != ui.PullIdle {
		return nil
	}
	return recovered(m.refresh(m.screen))
}

func (m Model) handleAccountKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Up):
		m.accountCursor = max(m.accountCursor-1, 0)
	case key.Matches(msg, m.keymap.Down):
		m.accountCursor = min(m.accountCursor+1, max(len(m.accounts)-1, 0))
	case key.Matches(msg, m.keymap.Link):
		if m.busy != "" {
			return m, nil
		}
		m.busy = "Waiting for the bank link to finish..."
		return m, recovered(m.linkAccount())
	case key.Matches(msg, m.keymap.Sync):
		account, ok := m.selectedAccount()
		if !ok || m.busy != "" {
			return m, nil
		}
		m.busy = "Syncing " + account.InstitutionName + "..."
		return m, recovered(m.syncAccount(account))
	case key.Matches(msg, m.keymap.Unlink):
		if account, ok := m.selectedAccount(); ok && m.busy == "" {
			m.pendingUnlink = account.ID
		}
	}
	return m, nil
}

func (m Model) confirmUnlink(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := m.pendingUnlink
	m.pendingUnlink = ""
	if !key.Matches(msg, m.keymap.Confirm) {
		return m, nil
	}
	for _, account := range m.accounts {
		if account.ID == id {
			m.busy = "Unlinking " + account.InstitutionName + "..."
			return m, recovered(m.unlinkAccount(account))
		}
	}
	return m, nil
}

func (m Model) selectedAccount() (model.BankAccount, bool) {
	if m.accountCursor < 0 || m.accountCursor >= len(m.accounts) {
		return model.BankAccount{}, false
	}
	return m.accounts[m.accountCursor], true
}

// handleMouse turns a left-button drag from the top of a screen into a
// pull-to-refresh gesture. Rows are scaled so the threshold is a few rows.
func (m Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	pull := m.pulls[m.screen]
	if pull == nil || m.detail != nil {
		return nil
	}

	scrollTop := 0
	if m.screen == ScreenTransactions && !m.transactionList.AtTop() {
		scrollTop = 1
	}
	y := msg.Y * m.config.PullRowUnits

	switch {
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		pull.Start(y, scrollTop)
	case msg.Action == tea.MouseActionMotion:
		pull.Move(y, scrollTop)
	case msg.Action == tea.MouseActionRelease:
		if pull.Release() {
			return recovered(m.refresh(m.screen))
		}
	}
	return nil
}

// resize lays components out for the current terminal size.
func (m *Model) resize() {
	m.help.Width = m.width
	m.transactionList = m.transactionList.Resize(m.width, m.contentHeight())
	m.stats = m.stats.Resize(m.width)
	m.splash.Width = min(max(m.width/3, 10), 40)
	if m.detail != nil {
		m.detail.Resize(m.width, m.contentHeight())
	}
}

// contentHeight is what remains after the tab bar, banner and help line.
func (m Model) contentHeight() int {
	return max(m.height-6, 5)
}
