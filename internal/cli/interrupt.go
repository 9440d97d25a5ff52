package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// InterruptHandler cancels the command context on SIGINT or SIGTERM and
// tells the user what happened.
type InterruptHandler struct {
	writer      io.Writer
	cancelFunc  context.CancelFunc
	stop        func()
	hint        string
	interrupted bool
	mu          sync.Mutex
}

// NewInterruptHandler creates a new interrupt handler.
func NewInterruptHandler(writer io.Writer) *InterruptHandler {
	if writer == nil {
		writer = os.Stderr
	}
	return &InterruptHandler{
		writer: writer,
		stop:   func() {},
	}
}

// SetHint adds a line to the interrupt message, such as how to resume.
func (h *InterruptHandler) SetHint(hint string) {
	h.mu.Lock()
	h.hint = hint
	h.mu.Unlock()
}

// HandleInterrupts returns a context that is canceled on the first signal.
func (h *InterruptHandler) HandleInterrupts(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	h.cancelFunc = cancel

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	var once sync.Once
	h.stop = func() {
		once.Do(func() {
			signal.Stop(sigChan)
			close(done)
		})
	}

	go func() {
		select {
		case <-sigChan:
			h.interrupt()
		case <-ctx.Done():
		case <-done:
		}
	}()

	return ctx
}

// Stop releases the signal handler.
func (h *InterruptHandler) Stop() {
	h.stop()
}

func (h *InterruptHandler) interrupt() {
	h.mu.Lock()
	first := !h.interrupted
	h.interrupted = true
	hint := h.hint
	h.mu.Unlock()

	if first {
		h.showInterruptMessage(hint)
	}
	if h.cancelFunc != nil {
		h.cancelFunc()
	}
}

func (h *InterruptHandler) showInterruptMessage(hint string) {
	msg := "\n" + FormatWarning("Interrupted, shutting down...")
	if hint != "" {
		msg += "\n" + FormatInfo(hint)
	}
	msg += "\n"

	if _, err := fmt.Fprint(h.writer, msg); err != nil {
		// Best effort - we're shutting down anyway
		fmt.Fprintf(os.Stderr, "Failed to write interrupt message: %v\n", err)
	}
}

// WasInterrupted returns true if the process was interrupted.
func (h *InterruptHandler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}
