package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/MrEthical07/ledgerAuth/internal/logging"
)

// LogMailer records messages in the log instead of delivering them. The body
// is never logged because it carries the code.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger.Named("mail")}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("notification queued",
		zap.String("to", logging.Redact(msg.To)),
		zap.String("kind", msg.Kind),
		zap.String("subject", msg.Subject),
		zap.Int("body_bytes", len(msg.Body)),
	)
	return nil
}
