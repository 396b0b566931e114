package orchestration

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const scopeName = "github.com/koscakluka/ema-speechbot/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	reconnectCounter      = newCounter("speechbot.orchestrator.reconnects", "Sessions reconnected after an unexpected close")
	messagesSentCounter   = newCounter("speechbot.orchestrator.messages_sent", "Transcribed phrases confirmed by the bot service")
	messagesFailedCounter = newCounter("speechbot.orchestrator.messages_failed", "Transcribed phrases the bot service rejected")
)

func newCounter(name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		logger.Warn("Failed to create counter", "name", name, "error", err)
		return noop.Int64Counter{}
	}
	return counter
}
