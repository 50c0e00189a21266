package sentry

import (
	"context"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/songify/reporter/internal/config"
	"github.com/songify/reporter/internal/scrub"
)

// Init configures the global Sentry client with the scrubbing hooks.
// It does nothing when no DSN is configured.
func Init(cfg *config.Config, es *EventScrubber) error {
	if cfg.SentryDSN == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:                   cfg.SentryDSN,
		Environment:           cfg.SentryEnvironment,
		SendDefaultPII:        false,
		BeforeSend:            es.ScrubEvent,
		BeforeSendTransaction: es.ScrubTransaction,
	})
}

// Capture is a scrubbed report forwarded to Sentry.
type Capture struct {
	Message     string
	Level       string
	Project     string
	Reference   string
	Params      *scrub.Params
	ExtraFields []string
}

// Reporter forwards reports to Sentry as message events.
type Reporter struct {
	hub *sentry.Hub
}

// NewReporter creates a Reporter on hub. A nil hub, or a hub without a
// client, disables forwarding.
func NewReporter(hub *sentry.Hub) *Reporter {
	return &Reporter{hub: hub}
}

// Capture sends c and returns the Sentry event ID, or "" when nothing was sent.
// The report's extra fields are applied again by the BeforeSend hook.
func (r *Reporter) Capture(ctx context.Context, c Capture) string {
	if r == nil || r.hub == nil || r.hub.Client() == nil {
		return ""
	}

	hub := r.hub.Clone()
	ctx = WithExtraFields(ctx, c.ExtraFields...)

	var id *sentry.EventID
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentryLevel(c.Level))
		scope.SetTag("project", c.Project)
		if c.Reference != "" {
			scope.SetTag("reference", c.Reference)
		}

		params := sentry.Context{}
		c.Params.Range(func(key string, value any) bool {
			params[key] = value
			return true
		})
		scope.SetContext("params", params)

		id = hub.Client().CaptureMessage(c.Message, &sentry.EventHint{Context: ctx}, scope)
	})

	if id == nil {
		return ""
	}
	return string(*id)
}

func sentryLevel(level string) sentry.Level {
	switch strings.ToLower(level) {
	case "debug":
		return sentry.LevelDebug
	case "info":
		return sentry.LevelInfo
	case "warn", "warning":
		return sentry.LevelWarning
	case "fatal", "critical":
		return sentry.LevelFatal
	default:
		return sentry.LevelError
	}
}
