package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard shortcuts.
type KeyMap struct {
	// Navigation
	Up       key.Binding
	Down     key.Binding
	PageDown key.Binding
	Home     key.Binding
	End      key.Binding
	NextTab  key.Binding
	PrevTab  key.Binding
	Select   key.Binding
	Back     key.Binding

	// Screens
	Dashboard    key.Binding
	Transactions key.Binding
	Accounts     key.Binding
	Insights     key.Binding

	// Actions
	Refresh key.Binding
	Link    key.Binding
	Unlink  key.Binding
	Sync    key.Binding
	Confirm key.Binding
	Dismiss key.Binding
	Retry   key.Binding
	Logout  key.Binding

	// Application
	Help      key.Binding
	Quit      key.Binding
	ForceQuit key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("↓/j", "down"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+f"),
			key.WithHelp("PgDn", "page down"),
		),
		Home: key.NewBinding(
			key.WithKeys("home", "g"),
			key.WithHelp("g", "top"),
		),
		End: key.NewBinding(
			key.WithKeys("end", "G"),
			key.WithHelp("G", "bottom"),
		),
		NextTab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "next screen"),
		),
		PrevTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("S-Tab", "previous screen"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "open"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "backspace"),
			key.WithHelp("Esc", "back"),
		),

		Dashboard: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "dashboard"),
		),
		Transactions: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "transactions"),
		),
		Accounts: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "accounts"),
		),
		Insights: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "insights"),
		),

		Refresh: key.NewBinding(
			key.WithKeys("r", "ctrl+r"),
			key.WithHelp("r", "refresh"),
		),
		Link: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "link account"),
		),
		Unlink: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "unlink account"),
		),
		Sync: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "sync account"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "confirm"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "dismiss toast"),
		),
		Retry: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "retry"),
		),
		Logout: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "log out"),
		),

		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("Ctrl+C", "force quit"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextTab, k.Refresh, k.Help, k.Quit}
}

// FullHelp returns all key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageDown, k.Home, k.End},
		{k.Dashboard, k.Transactions, k.Accounts, k.Insights},
		{k.Select, k.Back, k.Refresh, k.Dismiss},
		{k.Link, k.Unlink, k.Sync, k.Confirm},
		{k.Logout, k.Help, k.Quit},
	}
}
