package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

const sentryFlushTimeout = 2 * time.Second

// InitSentry wires error capture when a DSN is configured; without one the
// service runs fine and capture calls are no-ops.
func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
		// Stack traces stay in Sentry; production responses only ever
		// carry the generic localized message.
	})
}

func FlushSentry() {
	sentry.Flush(sentryFlushTimeout)
}
