package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// ErrInputCancelled is returned when a prompt's context ends before the user answers.
var ErrInputCancelled = errors.New("input canceled")

// LineReader reads lines from a stream without blocking past the caller's
// context. At most one underlying read is in flight; a line that arrives
// after its reader gave up is handed to the next ReadLine.
type LineReader struct {
	src     *bufio.Reader
	pending chan lineResult
	mu      sync.Mutex
}

type lineResult struct {
	err  error
	line string
}

// NewLineReader wraps r.
func NewLineReader(r io.Reader) *LineReader {
	if r == nil {
		panic("reader cannot be nil")
	}
	return &LineReader{src: bufio.NewReader(r)}
}

// ReadLine returns the next trimmed line. A final line without a newline is
// returned without error; io.EOF follows it.
func (r *LineReader) ReadLine(ctx context.Context) (string, error) {
	if ctx.Err() != nil {
		return "", ErrInputCancelled
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending == nil {
		ch := make(chan lineResult, 1)
		r.pending = ch
		go func() {
			line, err := r.src.ReadString('\n')
			ch <- lineResult{line: line, err: err}
		}()
	}

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case res := <-r.pending:
		r.pending = nil
		if res.err != nil && !(errors.Is(res.err, io.EOF) && res.line != "") {
			return "", res.err
		}
		return strings.TrimSpace(res.line), nil
	}
}
