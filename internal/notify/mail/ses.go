package mail

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	apperrors "beacon/internal/common/errors"
	"beacon/internal/common/logger"
	"beacon/internal/models"
)

// SESService is the subset of the SES client the transport uses.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
	SendRawEmail(ctx context.Context, params *ses.SendRawEmailInput, optFns ...func(*ses.Options)) (*ses.SendRawEmailOutput, error)
}

// SESMailer delivers synchronously through Amazon SES. Messages with
// attachments go out as raw MIME.
type SESMailer struct {
	client SESService
	logger logger.Logger
}

func NewSESMailer(client SESService, log logger.Logger) *SESMailer {
	return &SESMailer{
		client: client,
		logger: log.WithFields(map[string]interface{}{"transport": "ses"}),
	}
}

func (m *SESMailer) Send(ctx context.Context, msg *models.Message) error {
	if len(msg.Attachments) > 0 {
		return m.sendRaw(ctx, msg)
	}

	input := &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: msg.To,
			CcAddresses: msg.Cc,
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(msg.HTMLBody), Charset: aws.String("UTF-8")},
			},
		},
		Source: aws.String(msg.From),
	}
	if msg.TextBody != "" {
		input.Message.Body.Text = &types.Content{Data: aws.String(msg.TextBody), Charset: aws.String("UTF-8")}
	}
	if msg.ReplyTo != "" {
		input.ReplyToAddresses = []string{msg.ReplyTo}
	}

	out, err := m.client.SendEmail(ctx, input)
	if err != nil {
		return apperrors.NewExternalServiceError("ses", err)
	}
	m.logger.Debug("email sent", map[string]interface{}{
		"messageId": msg.ID, "sesMessageId": aws.ToString(out.MessageId),
	})
	return nil
}

func (m *SESMailer) sendRaw(ctx context.Context, msg *models.Message) error {
	raw, err := BuildMIME(msg, time.Now())
	if err != nil {
		return err
	}
	destinations := append(append([]string(nil), msg.To...), msg.Cc...)
	out, err := m.client.SendRawEmail(ctx, &ses.SendRawEmailInput{
		RawMessage:   &types.RawMessage{Data: raw},
		Destinations: destinations,
		Source:       aws.String(msg.From),
	})
	if err != nil {
		return apperrors.NewExternalServiceError("ses", err)
	}
	m.logger.Debug("raw email sent", map[string]interface{}{
		"messageId": msg.ID, "sesMessageId": aws.ToString(out.MessageId),
	})
	return nil
}
