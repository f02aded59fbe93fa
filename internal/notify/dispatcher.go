package notify

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "beacon/internal/common/errors"
	"beacon/internal/common/logger"
	"beacon/internal/common/metrics"
	"beacon/internal/models"
)

const DefaultSubjectPrefix = "[Beacon] "

type DispatcherConfig struct {
	From          string
	ReplyTo       string
	SubjectPrefix string
}

// Dispatcher renders notifications and hands each message to the Mailer.
// A failed recipient is recorded and the batch continues.
type Dispatcher struct {
	mailer    Mailer
	ledger    Ledger
	templates *Templates
	config    DispatcherConfig
	logger    logger.Logger
}

type DispatcherOption func(*Dispatcher)

// WithLedger enables per-recipient deduplication for keyed notifications.
func WithLedger(l Ledger) DispatcherOption {
	return func(d *Dispatcher) { d.ledger = l }
}

func NewDispatcher(mailer Mailer, templates *Templates, cfg DispatcherConfig, log logger.Logger, opts ...DispatcherOption) *Dispatcher {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = DefaultSubjectPrefix
	}
	d := &Dispatcher{
		mailer:    mailer,
		templates: templates,
		config:    cfg,
		logger:    log.WithFields(map[string]interface{}{"component": "dispatcher"}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch sends n and reports per-recipient outcomes. The returned error is
// non-nil only when nothing could be attempted, e.g. a template failed to
// render; delivery failures are reported in the Result.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) (Result, error) {
	start := time.Now()
	defer func() {
		metrics.DispatchDuration.WithLabelValues(string(n.Kind)).Observe(time.Since(start).Seconds())
	}()

	set := emailSet{}
	set.add(n.Recipients...)
	recipients := set.sorted()
	if len(recipients) == 0 {
		d.logger.Debug("No recipients, nothing to send", map[string]interface{}{"kind": n.Kind})
		return Result{}, nil
	}

	rendered, err := d.templates.Render(n.Kind, n.Data)
	if err != nil {
		return Result{}, err
	}

	var res Result
	recipients = d.claim(ctx, n, recipients, &res)

	if n.Multi {
		for _, to := range recipients {
			d.deliver(ctx, n, rendered, []string{to}, &res)
		}
	} else if len(recipients) > 0 {
		d.deliver(ctx, n, rendered, recipients, &res)
	}

	d.logger.Info("Notification dispatched", map[string]interface{}{
		"kind":      n.Kind,
		"attempted": res.Attempted,
		"sent":      res.Sent,
		"failed":    res.Failed,
		"skipped":   res.Skipped,
	})
	return res, nil
}

// claim drops recipients the ledger has already seen for n.DedupKey. Ledger
// errors fail open.
func (d *Dispatcher) claim(ctx context.Context, n Notification, recipients []string, res *Result) []string {
	if d.ledger == nil || n.DedupKey == "" {
		return recipients
	}
	out := recipients[:0:0]
	for _, to := range recipients {
		ok, err := d.ledger.Claim(ctx, n.DedupKey, to)
		if err != nil {
			d.logger.Warn("Dedup ledger unavailable, sending anyway", map[string]interface{}{
				"kind": n.Kind, "recipient": to, "error": err.Error(),
			})
			ok = true
		}
		if !ok {
			res.Skipped++
			metrics.NotificationsTotal.WithLabelValues(string(n.Kind), metrics.StatusSkipped).Inc()
			continue
		}
		out = append(out, to)
	}
	return out
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification, r *Rendered, to []string, res *Result) {
	msg := &models.Message{
		ID:          uuid.NewString(),
		Kind:        string(n.Kind),
		To:          to,
		From:        d.config.From,
		ReplyTo:     d.config.ReplyTo,
		Subject:     d.config.SubjectPrefix + r.Subject,
		HTMLBody:    r.HTML,
		TextBody:    r.Text,
		Attachments: n.Attachments,
	}
	res.Attempted += len(to)

	if err := d.mailer.Send(ctx, msg); err != nil {
		recipient := strings.Join(to, ",")
		res.Failed += len(to)
		res.Failures = append(res.Failures, apperrors.NewDispatchFailedError(recipient, err))
		metrics.NotificationsTotal.WithLabelValues(string(n.Kind), metrics.StatusFailed).Add(float64(len(to)))
		d.logger.Warn("Notification delivery failed", map[string]interface{}{
			"kind": n.Kind, "messageId": msg.ID, "recipient": recipient, "error": err.Error(),
		})
		d.release(ctx, n, to)
		return
	}

	res.Sent += len(to)
	metrics.NotificationsTotal.WithLabelValues(string(n.Kind), metrics.StatusSent).Add(float64(len(to)))
	d.logger.Debug("Notification delivered", map[string]interface{}{
		"kind": n.Kind, "messageId": msg.ID, "recipients": len(to),
	})
}

func (d *Dispatcher) release(ctx context.Context, n Notification, to []string) {
	if d.ledger == nil || n.DedupKey == "" {
		return
	}
	for _, r := range to {
		if err := d.ledger.Release(ctx, n.DedupKey, r); err != nil {
			d.logger.Warn("Failed to release dedup claim", map[string]interface{}{
				"kind": n.Kind, "recipient": r, "error": err.Error(),
			})
		}
	}
}
