package notify

import (
	"context"

	"github.com/gridvolt/auth-service/internal/utils"
)

// Notifier delivers a templated message to a recipient identified by an
// address the transport understands (email address, phone number).
// Fire-and-forget from the session engine's perspective: delivery failures
// are logged by the implementation, never surfaced as auth errors.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

type logNotifier struct{}

// NewLogNotifier returns a Notifier that only logs. Used when no transport
// credentials are configured (local development, tests).
func NewLogNotifier() Notifier {
	return &logNotifier{}
}

func (n *logNotifier) Send(_ context.Context, recipient, subject, body string) error {
	utils.Logger.Infof("notification (log only) to %s: %s: %s", recipient, subject, body)
	return nil
}
