// Package notify resolves notification audiences and fans prepared mail out
// through a Mailer.
package notify

import (
	"context"
	stderrors "errors"

	"beacon/internal/models"
)

// Kind names a notification template.
type Kind string

const (
	KindNewOpportunity           Kind = "new_opportunity"
	KindPostSubmitted            Kind = "post_submitted"
	KindNeedsReview              Kind = "needs_review"
	KindApproved                 Kind = "approved"
	KindQuestionAsked            Kind = "question_asked"
	KindQuestionAnswered         Kind = "question_answered"
	KindVendorWelcome            Kind = "vendor_welcome"
	KindVendorSignedUp           Kind = "vendor_signed_up"
	KindSubscriptionConfirmation Kind = "subscription_confirmation"
	KindDigest                   Kind = "digest"
)

// Mailer sends one prepared message. Implementations may deliver
// synchronously or hand the message to an asynchronous worker.
type Mailer interface {
	Send(ctx context.Context, msg *models.Message) error
}

// MailerFunc adapts a function to Mailer.
type MailerFunc func(ctx context.Context, msg *models.Message) error

func (f MailerFunc) Send(ctx context.Context, msg *models.Message) error { return f(ctx, msg) }

// Ledger remembers which recipients already received a keyed notification.
// Claim returns false when recipient was claimed before.
type Ledger interface {
	Claim(ctx context.Context, key, recipient string) (bool, error)
	Release(ctx context.Context, key, recipient string) error
}

// Notification is one logical send: a template, its data and an audience.
type Notification struct {
	Kind       Kind
	Recipients []string
	Data       Payload

	// Multi sends one message per recipient. Otherwise all recipients share
	// one message.
	Multi bool

	// DedupKey, when set and a Ledger is configured, skips recipients that
	// were already reached under the same key.
	DedupKey string

	Attachments []models.Attachment
}

// Result summarizes one Dispatch. Counts are per recipient.
type Result struct {
	Attempted int
	Sent      int
	Failed    int
	Skipped   int
	Failures  []error
}

// Err joins the per-recipient failures, or nil.
func (r Result) Err() error {
	return stderrors.Join(r.Failures...)
}
