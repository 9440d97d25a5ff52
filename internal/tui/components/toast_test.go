package components

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/spendwise/internal/tui/themes"
	"github.com/Veraticus/spendwise/internal/ui"
)

func TestRenderToastsEmpty(t *testing.T) {
	assert.Empty(t, RenderToasts(themes.Default, nil, 80))
}

func TestRenderToastsShowsNewest(t *testing.T) {
	var toasts []ui.Toast
	for i := 1; i <= 4; i++ {
		toasts = append(toasts, ui.Toast{
			ID:       fmt.Sprint(i),
			Severity: ui.SeverityInfo,
			Message:  fmt.Sprintf("message %d", i),
		})
	}

	out := RenderToasts(themes.Default, toasts, 80)

	assert.NotContains(t, out, "message 1")
	for i := 2; i <= 4; i++ {
		assert.Contains(t, out, fmt.Sprintf("message %d", i))
	}
}

func TestRenderToastsIcons(t *testing.T) {
	out := RenderToasts(themes.Default, []ui.Toast{
		{ID: "a", Severity: ui.SeveritySuccess, Message: "Refreshed"},
		{ID: "b", Severity: ui.SeverityError, Message: "Failed to refresh"},
	}, 0)

	assert.Contains(t, out, "✓ Refreshed")
	assert.Contains(t, out, "✗ Failed to refresh")
}
