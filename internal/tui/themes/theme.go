package themes

import "github.com/charmbracelet/lipgloss"

// Palette is the set of colors a theme is built from.
type Palette struct {
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
	Info       lipgloss.Color
	Background lipgloss.Color
	Foreground lipgloss.Color
	Subtle     lipgloss.Color
	Surface    lipgloss.Color
	Border     lipgloss.Color
	Muted      lipgloss.Color
}

// Theme defines the visual style for the TUI.
type Theme struct {
	Title         lipgloss.Style
	Subtitle      lipgloss.Style
	Normal        lipgloss.Style
	Bold          lipgloss.Style
	Faint         lipgloss.Style
	Selected      lipgloss.Style
	Tab           lipgloss.Style
	ActiveTab     lipgloss.Style
	Card          lipgloss.Style
	Banner        lipgloss.Style
	Debit         lipgloss.Style
	Credit        lipgloss.Style
	Input         lipgloss.Style
	FocusedInput  lipgloss.Style
	Toast         lipgloss.Style
	StatusInfo    lipgloss.Style
	StatusError   lipgloss.Style
	StatusWarning lipgloss.Style
	StatusSuccess lipgloss.Style
	CategoryIcon  lipgloss.Style
	Palette
}

// New builds every style of a theme from a palette.
func New(p Palette) Theme {
	return Theme{
		Palette: p,

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Foreground).
			MarginBottom(1),
		Subtitle: lipgloss.NewStyle().
			Foreground(p.Subtle),
		Normal: lipgloss.NewStyle().
			Foreground(p.Foreground),
		Bold: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Foreground),
		Faint: lipgloss.NewStyle().
			Foreground(p.Muted),
		Selected: lipgloss.NewStyle().
			Background(p.Primary).
			Foreground(p.Foreground).
			Bold(true),

		Tab: lipgloss.NewStyle().
			Foreground(p.Muted).
			Padding(0, 2),
		ActiveTab: lipgloss.NewStyle().
			Foreground(p.Foreground).
			Background(p.Primary).
			Bold(true).
			Padding(0, 2),
		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Border).
			Padding(0, 1),
		Banner: lipgloss.NewStyle().
			Foreground(p.Background).
			Background(p.Warning).
			Bold(true).
			Padding(0, 1),

		Debit: lipgloss.NewStyle().
			Foreground(p.Error),
		Credit: lipgloss.NewStyle().
			Foreground(p.Success),

		Input: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(p.Border).
			Padding(0, 1),
		FocusedInput: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(p.Primary).
			Padding(0, 1),

		Toast: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1),
		StatusSuccess: lipgloss.NewStyle().
			Foreground(p.Success).
			Bold(true),
		StatusWarning: lipgloss.NewStyle().
			Foreground(p.Warning).
			Bold(true),
		StatusError: lipgloss.NewStyle().
			Foreground(p.Error).
			Bold(true),
		StatusInfo: lipgloss.NewStyle().
			Foreground(p.Info).
			Bold(true),

		CategoryIcon: lipgloss.NewStyle().
			Width(3).
			Align(lipgloss.Center),
	}
}

// Default is the default theme.
var Default = New(Palette{
	Primary:    lipgloss.Color("#7c3aed"),
	Secondary:  lipgloss.Color("#a78bfa"),
	Success:    lipgloss.Color("#10b981"),
	Warning:    lipgloss.Color("#f59e0b"),
	Error:      lipgloss.Color("#ef4444"),
	Info:       lipgloss.Color("#3b82f6"),
	Background: lipgloss.Color("#1a1a1a"),
	Foreground: lipgloss.Color("#fafafa"),
	Subtle:     lipgloss.Color("#a3a3a3"),
	Surface:    lipgloss.Color("#262626"),
	Border:     lipgloss.Color("#404040"),
	Muted:      lipgloss.Color("#737373"),
})

// CatppuccinMocha is the Catppuccin Mocha theme.
var CatppuccinMocha = New(Palette{
	Primary:    lipgloss.Color("#cba6f7"),
	Secondary:  lipgloss.Color("#f5c2e7"),
	Success:    lipgloss.Color("#a6e3a1"),
	Warning:    lipgloss.Color("#f9e2af"),
	Error:      lipgloss.Color("#f38ba8"),
	Info:       lipgloss.Color("#89dceb"),
	Background: lipgloss.Color("#1e1e2e"),
	Foreground: lipgloss.Color("#cdd6f4"),
	Subtle:     lipgloss.Color("#a6adc8"),
	Surface:    lipgloss.Color("#313244"),
	Border:     lipgloss.Color("#45475a"),
	Muted:      lipgloss.Color("#6c7086"),
})

// GetTheme returns a theme by name.
func GetTheme(name string) Theme {
	switch name {
	case "catppuccin-mocha":
		return CatppuccinMocha
	default:
		return Default
	}
}

// CategoryIcons maps the backend's spending categories to icons.
var CategoryIcons = map[string]string{
	"Food & Dining":     "🍲",
	"Transportation":    "🚕",
	"Shopping":          "🛍️",
	"Bills & Utilities": "💡",
	"Entertainment":     "🎬",
	"Health":            "💊",
	"Transfer":          "🔁",
	"Salary":            "💼",
	"Education":         "📚",
	"Savings":           "🏦",
	"Other":             "📦",
}

// GetCategoryIcon returns an icon for a category.
func GetCategoryIcon(category string) string {
	if icon, ok := CategoryIcons[category]; ok {
		return icon
	}
	return "📦"
}
