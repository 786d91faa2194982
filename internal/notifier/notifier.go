package notifier

import (
	"context"
	"log"
)

// Notifier delivers a titled message. It reports whether delivery succeeded;
// failures are logged by the implementation and never stop the caller.
type Notifier interface {
	Send(ctx context.Context, title, body string) bool
}

// Multi fans a message out to every notifier.
type Multi []Notifier

// Send returns true when at least one notifier delivered.
func (m Multi) Send(ctx context.Context, title, body string) bool {
	ok := false
	for _, n := range m {
		if n.Send(ctx, title, body) {
			ok = true
		}
	}
	return ok
}

// Noop only logs.
type Noop struct{}

func (Noop) Send(_ context.Context, title, _ string) bool {
	log.Printf("[INFO] notification (not delivered): %s", title)
	return true
}
