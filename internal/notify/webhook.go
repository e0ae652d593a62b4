// Package notify delivers best-effort completion callbacks. A failed
// notification never affects the session outcome.
package notify

import (
	"context"
	"io"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/horizon/backend/internal/session"
	"github.com/wonny/horizon/backend/pkg/httputil"
	"github.com/wonny/horizon/backend/pkg/logger"
)

// Notifier POSTs the final status document of finished sessions to a
// configured webhook URL.
type Notifier struct {
	client *httputil.Client
	url    string
	logger *logger.Logger
}

// NewNotifier creates a webhook notifier. Deliveries are retried by the
// underlying client and rate limited so a burst of finishing sessions
// cannot flood the receiver.
func NewNotifier(url string, log *logger.Logger) *Notifier {
	client := httputil.NewWithTimeout(log, 10*time.Second).
		WithRetry(2, time.Second).
		WithRateLimiter(rate.NewLimiter(rate.Limit(5), 10))

	return &Notifier{
		client: client,
		url:    url,
		logger: log.WithComponent("notify.webhook"),
	}
}

// SessionFinished delivers the terminal status document. Errors are
// logged and swallowed.
func (n *Notifier) SessionFinished(sess *session.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := n.client.PostJSON(ctx, n.url, sess)
	if err != nil {
		n.logger.WithError(err).WithField("session_id", sess.SessionID).
			Warn("Webhook delivery failed")
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	n.logger.WithFields(map[string]interface{}{
		"session_id": sess.SessionID,
		"status":     sess.Status,
		"http":       resp.StatusCode,
	}).Debug("Webhook delivered")
}
