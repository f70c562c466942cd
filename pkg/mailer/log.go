package mailer

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogProvider logs messages instead of sending them. Used when no API key is configured.
type LogProvider struct {
	logger *zap.Logger
}

// NewLogProvider creates a log-only provider.
func NewLogProvider(logger *zap.Logger) *LogProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogProvider{logger: logger}
}

// Name returns the provider name.
func (l *LogProvider) Name() string {
	return "log"
}

// Send logs the message envelope and returns a synthetic id.
func (l *LogProvider) Send(_ context.Context, msg Message) (SendResult, error) {
	id := "log-" + uuid.NewString()
	l.logger.Info("mail logged (not sent)",
		zap.String("from", msg.From),
		zap.String("to", strings.Join(msg.To, ", ")),
		zap.String("subject", msg.Subject),
		zap.Int("html_length", len(msg.HTML)),
		zap.Int("text_length", len(msg.Text)),
		zap.String("message_id", id),
	)
	if msg.Text != "" {
		l.logger.Debug("mail text body", zap.String("text", msg.Text))
	}
	return SendResult{ProviderMessageID: id}, nil
}
