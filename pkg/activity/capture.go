package activity

import (
	"context"
	"sync"
)

// CaptureHook keeps every event it receives, normalized, so tests and
// examples can assert on the lifecycle stream.
type CaptureHook struct {
	mu     sync.Mutex
	Events []Event
	// Err is returned from every Notify call after the event is kept.
	Err error
}

// Notify implements ActivityHook.
func (h *CaptureHook) Notify(_ context.Context, event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Events = append(h.Events, NormalizeEvent(event))
	return h.Err
}

// Verbs returns the recorded verbs in notification order.
func (h *CaptureHook) Verbs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	verbs := make([]string, 0, len(h.Events))
	for _, event := range h.Events {
		verbs = append(verbs, event.Verb)
	}
	return verbs
}

// WithVerb returns the recorded events carrying verb.
func (h *CaptureHook) WithVerb(verb string) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Event
	for _, event := range h.Events {
		if event.Verb == verb {
			out = append(out, event)
		}
	}
	return out
}

// Reset drops the recorded events.
func (h *CaptureHook) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Events = nil
}
