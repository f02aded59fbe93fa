package errors

import (
	"context"
	"encoding/json"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// Logger is the subset of logger.Logger the job handler needs.
type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// JobErrorHandler turns a handler error into a Zeebe fail or throw command.
// Retryable codes fail the job with the remaining retries; everything else is
// thrown as a BPMN error carrying the code.
type JobErrorHandler struct {
	logger Logger
}

func NewJobErrorHandler(logger Logger) *JobErrorHandler {
	return &JobErrorHandler{logger: logger}
}

// Variables returns the process variables describing stdErr.
func Variables(stdErr *StandardError) map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    string(stdErr.Code),
		"errorMessage": stdErr.Message,
		"errorDetails": stdErr.Details,
		"retryable":    stdErr.Retryable,
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}
	return vars
}

// HandleJobError reports err against job. It never returns an error; a failed
// command send is logged.
func (h *JobErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := AsStandard(err)
	retries := GetRetryCount(stdErr.Code)

	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"errorCode":        string(stdErr.Code),
		"details":          stdErr.Details,
		"retryable":        stdErr.Retryable,
		"errorCategory":    GetErrorCategory(stdErr.Code),
		"workflowInstance": job.ProcessInstanceKey,
	})

	varsJSON, _ := json.Marshal(Variables(stdErr))

	if stdErr.Retryable && retries > 0 && job.Retries > 0 {
		remaining := job.Retries - 1
		if int(remaining) > retries {
			remaining = int32(retries)
		}
		cmd := client.NewFailJobCommand().
			JobKey(job.Key).
			Retries(remaining).
			ErrorMessage(stdErr.Error())
		withVars, verr := cmd.VariablesFromString(string(varsJSON))
		if verr != nil {
			_, sendErr := cmd.Send(ctx)
			h.logSendError(job, sendErr)
			return
		}
		_, sendErr := withVars.Send(ctx)
		h.logSendError(job, sendErr)
		return
	}

	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(string(stdErr.Code)).
		ErrorMessage(stdErr.Message)
	withVars, verr := cmd.VariablesFromString(string(varsJSON))
	if verr != nil {
		_, sendErr := cmd.Send(ctx)
		h.logSendError(job, sendErr)
		return
	}
	_, sendErr := withVars.Send(ctx)
	h.logSendError(job, sendErr)
}

func (h *JobErrorHandler) logSendError(job entities.Job, err error) {
	if err == nil {
		return
	}
	h.logger.Error("failed to report job error", map[string]interface{}{
		"jobKey": job.Key,
		"error":  err.Error(),
	})
}
