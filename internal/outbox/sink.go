package outbox

import (
	"context"

	"github.com/rs/zerolog"
)

// Sink delivers one claimed event to whatever transport a consumer expects.
// A delivery error puts the row back through MarkFailed/Backoff.
type Sink interface {
	Deliver(ctx context.Context, eventType string, payload []byte) error
}

// LogSink is the default sink: it records delivery as a structured log line
// rather than publishing anywhere. It never fails, which makes it a safe
// fallback when no broker is configured.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "outbox_sink").Logger()}
}

func (s *LogSink) Deliver(ctx context.Context, eventType string, payload []byte) error {
	s.log.Info().
		Str("event_type", eventType).
		RawJSON("payload", payload).
		Msg("event delivered")
	return nil
}
