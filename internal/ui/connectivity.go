package ui

import (
	"sync"
	"time"
)

// Connectivity toasts.
const (
	OnlineMessage   = "Connection restored"
	OfflineMessage  = "You are offline. Some features may be unavailable."
	OnlineDuration  = 3 * time.Second
	OfflineDuration = 5 * time.Second
)

// Connectivity tracks whether the backend is reachable and announces changes.
type Connectivity struct {
	notifier  *Notifier
	observers observers[bool]
	mu        sync.Mutex
	offline   bool
}

// NewConnectivity starts online. Changes are announced through notifier when it is set.
func NewConnectivity(notifier *Notifier) *Connectivity {
	return &Connectivity{notifier: notifier}
}

// Report records the outcome of a request. Its signature matches the API
// client's connectivity observer.
func (c *Connectivity) Report(online bool) {
	c.mu.Lock()
	if c.offline == !online {
		c.mu.Unlock()
		return
	}
	c.offline = !online
	c.mu.Unlock()

	if c.notifier != nil {
		if online {
			c.notifier.Add(SeveritySuccess, OnlineMessage, OnlineDuration)
		} else {
			c.notifier.Add(SeverityWarning, OfflineMessage, OfflineDuration)
		}
	}
	c.observers.notify(!online)
}

// Offline reports the last known state.
func (c *Connectivity) Offline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offline
}

// Subscribe calls fn with the offline flag after every change.
func (c *Connectivity) Subscribe(fn func(offline bool)) func() {
	return c.observers.add(fn)
}
