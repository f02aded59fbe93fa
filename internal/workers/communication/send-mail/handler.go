// Package sendmail is the job worker behind the zeebe mail transport: it
// delivers one prepared message per job through a direct transport.
package sendmail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"beacon/internal/common/camunda"
	"beacon/internal/common/config"
	apperrors "beacon/internal/common/errors"
	"beacon/internal/common/logger"
	"beacon/internal/common/metrics"
	"beacon/internal/common/validation"
	"beacon/internal/notify"
)

const TaskType = "beacon-send-mail"

type Handler struct {
	config    *Config
	mailer    notify.Mailer
	errors    *apperrors.JobErrorHandler
	logger    logger.Logger
	jobWorker *camunda.CamundaWorker
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	// Mailer must deliver directly; handing a job's message back to the
	// zeebe transport would start another instance.
	Mailer notify.Mailer
	Logger logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for send-mail: %w", err)
	}
	if opts.Mailer == nil {
		return nil, fmt.Errorf("send-mail requires a mailer")
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.WithFields(map[string]interface{}{"worker": workerConfig.JobType})

	return &Handler{
		config: workerConfig,
		mailer: opts.Mailer,
		errors: apperrors.NewJobErrorHandler(log),
		logger: log,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing mail job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	if !h.config.Enabled {
		h.completeJob(ctx, client, job, &Output{Delivered: false})
		return
	}

	input, err := h.parseInput(job)
	if err == nil {
		var output *Output
		if output, err = h.Execute(ctx, input); err == nil {
			h.completeJob(ctx, client, job, output)
			metrics.WorkerJobsCompleted.WithLabelValues(h.config.JobType).Inc()
			metrics.WorkerJobDuration.WithLabelValues(h.config.JobType).Observe(time.Since(start).Seconds())
			return
		}
	}

	metrics.WorkerJobsFailed.WithLabelValues(h.config.JobType, string(apperrors.CodeOf(err))).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, apperrors.NewValidationError(apperrors.FieldError{
			Field: "variables", Rule: "json", Message: err.Error(),
		})
	}

	fields, err := validation.Validate(GetInputSchema(), variables, "")
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError(fields...)
	}

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, apperrors.NewValidationError(apperrors.FieldError{
			Field: "message", Rule: "json", Message: err.Error(),
		})
	}
	return &input, nil
}

// Execute delivers the message. Transport failures are retryable; a bad
// address is not.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	msg := input.Message
	if msg == nil {
		return nil, apperrors.NewValidationError(apperrors.FieldError{
			Field: "message", Rule: "required", Message: "message is required",
		})
	}

	var fields []apperrors.FieldError
	for i, to := range msg.To {
		if !validation.ValidateEmail(to) {
			fields = append(fields, apperrors.FieldError{
				Field: fmt.Sprintf("message.to[%d]", i), Rule: "email", Message: "invalid address " + to,
			})
		}
	}
	if !validation.ValidateEmail(msg.From) {
		fields = append(fields, apperrors.FieldError{
			Field: "message.from", Rule: "email", Message: "invalid address " + msg.From,
		})
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError(fields...)
	}

	if err := h.mailer.Send(ctx, msg); err != nil {
		if apperrors.AsStandard(err).Code != apperrors.ErrCodeInternal {
			return nil, err
		}
		return nil, apperrors.NewExternalServiceError("mail", err)
	}

	h.logger.Info("mail delivered", map[string]interface{}{
		"messageId":  msg.ID,
		"kind":       msg.Kind,
		"recipients": len(msg.To),
	})
	return &Output{
		MessageID:  msg.ID,
		Kind:       msg.Kind,
		Recipients: len(msg.To),
		Delivered:  true,
		SentAt:     time.Now().UTC(),
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	if _, err := request.Send(ctx); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
	}
}

// Register opens the job worker. A disabled worker registers nothing.
func (h *Handler) Register(client zbc.Client) {
	if !h.config.Enabled {
		h.logger.Info("worker is disabled, skipping registration", nil)
		return
	}
	h.jobWorker = camunda.NewWorker(client, h.config.JobType, h.config.MaxJobsActive, h.config.Timeout, h, h.logger)
	h.jobWorker.Start()
}

func (h *Handler) Close(ctx context.Context) {
	if h.jobWorker != nil {
		h.jobWorker.Stop(ctx)
		h.jobWorker = nil
	}
}

func (h *Handler) GetTaskType() string { return h.config.JobType }

func (h *Handler) IsEnabled() bool { return h.config.Enabled }
