package ledgerAuth

import (
	"io"

	"go.uber.org/zap"

	"github.com/MrEthical07/ledgerAuth/internal/audit"
)

// AuditEvent is one security-relevant outcome emitted by the engine.
type AuditEvent = audit.Event

// AuditSink receives audit events from the dispatcher worker.
type AuditSink = audit.Sink

// NoOpSink drops every event.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers events in a channel, mostly for tests.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// ZapSink writes events through a zap logger.
type ZapSink = audit.ZapSink

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	return audit.NewZapSink(logger)
}
