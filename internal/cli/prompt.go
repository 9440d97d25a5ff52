package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter asks the user for input on a terminal or a plain stream.
type Prompter struct {
	reader *LineReader
	out    io.Writer
	fd     int
}

// NewPrompter reads from in and writes prompts to out. Secrets are read
// without echo when in is a terminal.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	fd := -1
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd = int(f.Fd())
	}
	return &Prompter{
		reader: NewLineReader(in),
		out:    out,
		fd:     fd,
	}
}

// Ask prints label and returns the trimmed answer.
func (p *Prompter) Ask(ctx context.Context, label string) (string, error) {
	fmt.Fprint(p.out, FormatPrompt(label))
	return p.reader.ReadLine(ctx)
}

// AskDefault is Ask with a value used when the answer is empty.
func (p *Prompter) AskDefault(ctx context.Context, label, def string) (string, error) {
	if def != "" {
		label = fmt.Sprintf("%s [%s]", label, def)
	}
	answer, err := p.Ask(ctx, label)
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// Secret reads a value without echoing it.
func (p *Prompter) Secret(ctx context.Context, label string) (string, error) {
	if p.fd < 0 {
		return p.Ask(ctx, label)
	}

	fmt.Fprint(p.out, FormatPrompt(label))
	secret, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	if ctx.Err() != nil {
		return "", ErrInputCancelled
	}
	return string(secret), nil
}

// Confirm asks a yes/no question; anything but y or yes is no.
func (p *Prompter) Confirm(ctx context.Context, question string) (bool, error) {
	answer, err := p.Ask(ctx, question+" (y/N)")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
