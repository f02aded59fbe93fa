package mail

import (
	"context"
	"strings"

	"beacon/internal/common/logger"
	"beacon/internal/models"
)

// LogMailer records messages in the log instead of sending them.
type LogMailer struct {
	logger logger.Logger
}

func NewLogMailer(log logger.Logger) *LogMailer {
	return &LogMailer{logger: log.WithFields(map[string]interface{}{"transport": "log"})}
}

func (m *LogMailer) Send(_ context.Context, msg *models.Message) error {
	m.logger.Info("EMAIL", map[string]interface{}{
		"messageId": msg.ID,
		"kind":      msg.Kind,
		"to":        strings.Join(msg.To, ","),
		"from":      msg.From,
		"subject":   msg.Subject,
	})
	return nil
}
