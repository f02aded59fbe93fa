package mail

import (
	"context"
	"fmt"

	awsclient "beacon/internal/common/aws"
	"beacon/internal/common/config"
	apperrors "beacon/internal/common/errors"
	"beacon/internal/common/logger"
	"beacon/internal/notify"
)

// New returns the transport named by cfg.Mail.Transport. starter is only
// used by the zeebe transport and may be nil otherwise.
func New(ctx context.Context, cfg *config.Config, starter ProcessStarter, log logger.Logger) (notify.Mailer, error) {
	if cfg.Mail.Transport == config.TransportZeebe {
		if starter == nil {
			return nil, apperrors.NewConfigInvalidError("zeebe mail transport requires a camunda client")
		}
		return NewZeebeMailer(starter, cfg.Camunda.MailProcessID, log), nil
	}
	return NewDelivery(ctx, cfg.Mail, log)
}

// NewDelivery returns a transport that delivers mail itself: ses, smtp or log.
func NewDelivery(ctx context.Context, cfg config.MailConfig, log logger.Logger) (notify.Mailer, error) {
	switch cfg.Transport {
	case config.TransportSES:
		client, err := awsclient.NewSESClient(ctx, cfg.SES.Region)
		if err != nil {
			return nil, err
		}
		return NewSESMailer(client, log), nil
	case config.TransportSMTP:
		return NewSMTPMailer(SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			UseTLS:   cfg.SMTP.UseTLS,
		}, log), nil
	case config.TransportLog, "":
		return NewLogMailer(log), nil
	default:
		return nil, apperrors.NewConfigInvalidError(fmt.Sprintf("mail transport %q cannot deliver directly", cfg.Transport))
	}
}
