package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/spendwise/internal/tui/themes"
	"github.com/Veraticus/spendwise/internal/ui"
)

// MaxVisibleToasts caps how many toasts are stacked at once; the newest win.
const MaxVisibleToasts = 3

var toastIcons = map[ui.Severity]string{
	ui.SeveritySuccess: "✓",
	ui.SeverityError:   "✗",
	ui.SeverityWarning: "!",
	ui.SeverityInfo:    "i",
}

// RenderToasts stacks the queued toasts, oldest first, right-aligned in width.
func RenderToasts(theme themes.Theme, toasts []ui.Toast, width int) string {
	if len(toasts) == 0 {
		return ""
	}
	if len(toasts) > MaxVisibleToasts {
		toasts = toasts[len(toasts)-MaxVisibleToasts:]
	}

	boxes := make([]string, 0, len(toasts))
	for _, t := range toasts {
		status, color := toastStyle(theme, t.Severity)
		box := theme.Toast.
			BorderForeground(color).
			MaxWidth(max(width/2, 30)).
			Render(status.Render(toastIcons[t.Severity]) + " " + t.Message)
		boxes = append(boxes, box)
	}

	stack := lipgloss.JoinVertical(lipgloss.Right, boxes...)
	if width <= 0 {
		return stack
	}
	return lipgloss.PlaceHorizontal(width, lipgloss.Right, stack)
}

func toastStyle(theme themes.Theme, severity ui.Severity) (lipgloss.Style, lipgloss.Color) {
	switch severity {
	case ui.SeveritySuccess:
		return theme.StatusSuccess, theme.Success
	case ui.SeverityError:
		return theme.StatusError, theme.Error
	case ui.SeverityWarning:
		return theme.StatusWarning, theme.Warning
	default:
		return theme.StatusInfo, theme.Info
	}
}
