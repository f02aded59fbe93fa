package mail

import (
	"context"

	"beacon/internal/common/logger"
	"beacon/internal/models"
)

// ProcessStarter starts a BPMN process instance. camunda.Client satisfies it.
type ProcessStarter interface {
	StartProcess(ctx context.Context, processID string, variables interface{}) (int64, error)
}

// ZeebeMailer hands each message to a mail process; a job worker performs
// the actual delivery. Send returns once the instance exists.
type ZeebeMailer struct {
	starter   ProcessStarter
	processID string
	logger    logger.Logger
}

func NewZeebeMailer(starter ProcessStarter, processID string, log logger.Logger) *ZeebeMailer {
	return &ZeebeMailer{
		starter:   starter,
		processID: processID,
		logger:    log.WithFields(map[string]interface{}{"transport": "zeebe", "processId": processID}),
	}
}

// Variables is the payload of one mail process instance.
type Variables struct {
	Message *models.Message `json:"message"`
}

func (m *ZeebeMailer) Send(ctx context.Context, msg *models.Message) error {
	key, err := m.starter.StartProcess(ctx, m.processID, Variables{Message: msg})
	if err != nil {
		return err
	}
	m.logger.Debug("mail process started", map[string]interface{}{
		"messageId": msg.ID, "processInstanceKey": key,
	})
	return nil
}
