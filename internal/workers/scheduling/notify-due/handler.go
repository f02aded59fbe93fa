// Package notifydue runs the publish-notification sweep as a job, so a BPMN
// timer decides when it happens.
package notifydue

import (
	"context"
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
)

const TaskType = "beacon-notify-due"

// Sweeper sends the publish notification of every due opportunity and
// reports how many were sent.
type Sweeper interface {
	SendDueNotifications(ctx context.Context) (int, error)
}

type Handler struct {
	config    *Config
	sweeper   Sweeper
	errors    *apperrors.JobErrorHandler
	logger    logger.Logger
	jobWorker *camunda.CamundaWorker
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Sweeper      Sweeper
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for notify-due: %w", err)
	}
	if opts.Sweeper == nil {
		return nil, fmt.Errorf("notify-due requires a sweeper")
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.WithFields(map[string]interface{}{"worker": workerConfig.JobType})

	return &Handler{
		config:  workerConfig,
		sweeper: opts.Sweeper,
		errors:  apperrors.NewJobErrorHandler(log),
		logger:  log,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing due sweep", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	output, err := h.Execute(ctx)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(h.config.JobType, string(apperrors.CodeOf(err))).Inc()
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(h.config.JobType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(h.config.JobType).Observe(time.Since(start).Seconds())
}

// Execute runs one sweep. A disabled worker completes without sweeping so
// the process still advances.
func (h *Handler) Execute(ctx context.Context) (*Output, error) {
	if !h.config.Enabled {
		return &Output{SweptAt: time.Now().UTC(), Skipped: true}, nil
	}

	n, err := h.sweeper.SendDueNotifications(ctx)
	if err != nil {
		return nil, err
	}
	h.logger.Info("due sweep finished", map[string]interface{}{"notified": n})
	return &Output{Notified: n, SweptAt: time.Now().UTC()}, nil
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
