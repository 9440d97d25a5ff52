package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrompterAsk(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("  ada@example.com \n"), &out)

	answer, err := p.Ask(context.Background(), "Email")

	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", answer)
	assert.Contains(t, out.String(), "Email: ")
}

func TestPrompterAskDefault(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("\nGrace\n"), &out)
	ctx := context.Background()

	answer, err := p.AskDefault(ctx, "Name", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "Ada", answer)
	assert.Contains(t, out.String(), "Name [Ada]: ")

	answer, err = p.AskDefault(ctx, "Name", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "Grace", answer)
}

func TestPrompterSecretWithoutTerminal(t *testing.T) {
	p := NewPrompter(strings.NewReader("correct-horse\n"), &bytes.Buffer{})

	secret, err := p.Secret(context.Background(), "Password")

	require.NoError(t, err)
	assert.Equal(t, "correct-horse", secret)
}

func TestPrompterConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "y\n", want: true},
		{input: "YES\n", want: true},
		{input: "n\n", want: false},
		{input: "\n", want: false},
		{input: "maybe\n", want: false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			p := NewPrompter(strings.NewReader(tt.input), &bytes.Buffer{})
			got, err := p.Confirm(context.Background(), "Unlink account?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrompterCanceled(t *testing.T) {
	p := NewPrompter(strings.NewReader("ignored\n"), &bytes.Buffer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Ask(ctx, "Email")
	assert.ErrorIs(t, err, ErrInputCancelled)
}

func TestRenderTable(t *testing.T) {
	out := RenderTable([]string{"Bank", "Balance"}, [][]string{
		{"GTBank", "₦1,000.00"},
		{"Access", "₦250.00"},
	})

	assert.Contains(t, out, "Bank")
	assert.Contains(t, out, "GTBank")
	assert.Contains(t, out, "₦250.00")
}
