package ui

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Severity selects a toast's color and icon.
type Severity string

// Toast severities.
const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// DefaultToastDuration is how long a toast stays up unless told otherwise.
const DefaultToastDuration = 3 * time.Second

// Toast is a transient notification.
type Toast struct {
	CreatedAt time.Time
	ID        string
	Severity  Severity
	Message   string
	// Duration of zero or less keeps the toast until it is dismissed.
	Duration time.Duration
}

// Sticky reports whether the toast waits for an explicit dismissal.
func (t Toast) Sticky() bool {
	return t.Duration <= 0
}

// Notifier is a FIFO queue of toasts that expire on their own timers.
type Notifier struct {
	timers    map[string]*time.Timer
	now       func() time.Time
	observers observers[[]Toast]
	toasts    []Toast
	mu        sync.Mutex
	closed    bool
}

// NewNotifier creates an empty queue.
func NewNotifier() *Notifier {
	return &Notifier{
		timers: make(map[string]*time.Timer),
		now:    time.Now,
	}
}

// Add queues a toast and returns its id.
func (n *Notifier) Add(severity Severity, message string, d time.Duration) string {
	t := Toast{
		ID:        uuid.NewString(),
		Severity:  severity,
		Message:   message,
		Duration:  d,
		CreatedAt: n.now(),
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return t.ID
	}
	n.toasts = append(n.toasts, t)
	if !t.Sticky() {
		n.timers[t.ID] = time.AfterFunc(d, func() { n.Dismiss(t.ID) })
	}
	snap := n.snapshot()
	n.mu.Unlock()

	n.observers.notify(snap)
	return t.ID
}

// Success queues a success toast with the default duration.
func (n *Notifier) Success(message string) string {
	return n.Add(SeveritySuccess, message, DefaultToastDuration)
}

// Error queues an error toast with the default duration.
func (n *Notifier) Error(message string) string {
	return n.Add(SeverityError, message, DefaultToastDuration)
}

// Warning queues a warning toast with the default duration.
func (n *Notifier) Warning(message string) string {
	return n.Add(SeverityWarning, message, DefaultToastDuration)
}

// Info queues an info toast with the default duration.
func (n *Notifier) Info(message string) string {
	return n.Add(SeverityInfo, message, DefaultToastDuration)
}

// Dismiss removes a toast. It reports whether the toast was still queued.
func (n *Notifier) Dismiss(id string) bool {
	n.mu.Lock()
	idx := -1
	for i, t := range n.toasts {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		n.mu.Unlock()
		return false
	}
	n.toasts = append(n.toasts[:idx], n.toasts[idx+1:]...)
	if timer, ok := n.timers[id]; ok {
		timer.Stop()
		delete(n.timers, id)
	}
	snap := n.snapshot()
	n.mu.Unlock()

	n.observers.notify(snap)
	return true
}

// Clear removes every toast.
func (n *Notifier) Clear() {
	n.mu.Lock()
	n.stopTimers()
	n.toasts = nil
	n.mu.Unlock()

	n.observers.notify(nil)
}

// Toasts returns the queued toasts, oldest first.
func (n *Notifier) Toasts() []Toast {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.snapshot()
}

// Subscribe calls fn with the queue after every change.
func (n *Notifier) Subscribe(fn func([]Toast)) func() {
	return n.observers.add(fn)
}

// Close stops pending timers. Toasts added afterwards are dropped.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	n.stopTimers()
}

func (n *Notifier) stopTimers() {
	for id, timer := range n.timers {
		timer.Stop()
		delete(n.timers, id)
	}
}

func (n *Notifier) snapshot() []Toast {
	if len(n.toasts) == 0 {
		return nil
	}
	out := make([]Toast, len(n.toasts))
	copy(out, n.toasts)
	return out
}
