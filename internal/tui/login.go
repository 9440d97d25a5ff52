package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/spendwise/internal/common"
	"github.com/Veraticus/spendwise/internal/queries"
	"github.com/Veraticus/spendwise/internal/tui/themes"
)

const (
	loginEmail = iota
	loginPassword
	loginFields
)

// loginForm is the email and password form shown while signed out.
type loginForm struct {
	fieldErrs  map[string]string
	err        string
	inputs     [loginFields]textinput.Model
	focus      int
	submitting bool
}

func newLoginForm() loginForm {
	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.CharLimit = 254
	email.Prompt = "Email    "

	password := textinput.New()
	password.Placeholder = "password"
	password.CharLimit = 128
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.Prompt = "Password "

	f := loginForm{inputs: [loginFields]textinput.Model{email, password}}
	f.inputs[loginEmail].Focus()
	return f
}

func (f loginForm) email() string {
	return strings.TrimSpace(f.inputs[loginEmail].Value())
}

func (f loginForm) password() string {
	return f.inputs[loginPassword].Value()
}

// reset clears the password and any errors, keeping the email.
func (f loginForm) reset() loginForm {
	f.inputs[loginPassword].SetValue("")
	f.err = ""
	f.fieldErrs = nil
	f.submitting = false
	return f.setFocus(loginEmail)
}

func (f loginForm) setFocus(i int) loginForm {
	f.focus = i
	for j := range f.inputs {
		if j == i {
			f.inputs[j].Focus()
		} else {
			f.inputs[j].Blur()
		}
	}
	return f
}

// update handles keys. submit is true when the form should be sent.
func (f loginForm) update(msg tea.KeyMsg) (loginForm, tea.Cmd, bool) {
	if f.submitting {
		return f, nil, false
	}

	switch msg.String() {
	case "tab", "down":
		return f.setFocus((f.focus + 1) % loginFields), textinput.Blink, false
	case "shift+tab", "up":
		return f.setFocus((f.focus + loginFields - 1) % loginFields), textinput.Blink, false
	case "enter":
		if f.focus == loginEmail {
			return f.setFocus(loginPassword), textinput.Blink, false
		}
		f.err = ""
		f.fieldErrs = nil
		f.submitting = true
		return f, nil, true
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd, false
}

// failed records a login failure for display.
func (f loginForm) failed(err error) loginForm {
	f.submitting = false
	var verr *queries.ValidationError
	if errors.As(err, &verr) {
		f.fieldErrs = verr.Fields
		return f
	}
	f.err = common.UserMessage(err)
	return f
}

func (f loginForm) view(theme themes.Theme, spinner string) string {
	lines := []string{
		theme.Title.Render("Sign in to SpendWise"),
	}

	fieldNames := [loginFields]string{"email", "password"}
	for i, input := range f.inputs {
		style := theme.Input
		if i == f.focus {
			style = theme.FocusedInput
		}
		lines = append(lines, style.Width(44).Render(input.View()))
		if msg := f.fieldErrs[fieldNames[i]]; msg != "" {
			lines = append(lines, theme.StatusError.Render(msg))
		}
	}

	switch {
	case f.submitting:
		lines = append(lines, spinner+" Signing in...")
	case f.err != "":
		lines = append(lines, theme.StatusError.Render(f.err))
	default:
		lines = append(lines, theme.Faint.Render("Tab to switch fields, Enter to sign in, Esc to quit"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
