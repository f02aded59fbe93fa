// Package camunda connects beacon to a Zeebe gateway. The mail transport
// starts delivery processes through Client; cmd/beacon-worker polls jobs
// through Worker.
package camunda

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"beacon/internal/common/config"
	apperrors "beacon/internal/common/errors"
)

// Client owns a gateway connection and retries commands on transient gRPC
// failures.
type Client struct {
	client zbc.Client
	cfg    ClientConfig
}

// ClientConfig holds connection settings.
type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
	Retry                  RetryConfig
}

// RetryConfig bounds the backoff used for transient failures.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryConfig retries three times, doubling from one second.
var DefaultRetryConfig = RetryConfig{
	MaxRetries: 3,
	BaseDelay:  time.Second,
	MaxDelay:   10 * time.Second,
}

func (r RetryConfig) delay(attempt int) time.Duration {
	d := r.BaseDelay << attempt
	if d <= 0 || d > r.MaxDelay {
		return r.MaxDelay
	}
	return d
}

// ConfigFrom derives client settings from the camunda section. A zero
// timeout falls back to thirty seconds per request.
func ConfigFrom(cfg config.CamundaConfig) ClientConfig {
	request := time.Duration(cfg.Timeout) * time.Millisecond
	if request <= 0 {
		request = 30 * time.Second
	}
	return ClientConfig{
		GatewayAddress:         cfg.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      10 * time.Second,
		RequestTimeout:         request,
		Retry:                  DefaultRetryConfig,
	}
}

// NewClient dials the gateway and probes its topology before returning.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.GatewayAddress == "" {
		return nil, apperrors.NewConfigInvalidError("camunda.broker_address is required")
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry = DefaultRetryConfig
	}
	if cfg.ConnectionTimeout <= 0 {
		cfg.ConnectionTimeout = 10 * time.Second
	}

	zc, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.GatewayAddress,
		UsePlaintextConnection: cfg.UsePlaintextConnection,
	})
	if err != nil {
		return nil, apperrors.NewExternalServiceError("zeebe", err)
	}

	c := &Client{client: zc, cfg: cfg}
	if err := c.HealthCheck(context.Background()); err != nil {
		zc.Close()
		return nil, err
	}
	return c, nil
}

// GetClient exposes the raw client for job workers.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// StartProcess creates an instance of the latest deployed version of
// processID and returns its key.
func (c *Client) StartProcess(ctx context.Context, processID string, variables interface{}) (int64, error) {
	return retry(ctx, c.cfg.Retry, "create-instance:"+processID, func(ctx context.Context) (int64, error) {
		cmd, err := c.client.NewCreateInstanceCommand().
			BPMNProcessId(processID).
			LatestVersion().
			VariablesFromObject(variables)
		if err != nil {
			return 0, apperrors.NewValidationError(apperrors.FieldError{Field: "variables", Message: err.Error()})
		}
		if c.cfg.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
			defer cancel()
		}
		resp, err := cmd.Send(ctx)
		if err != nil {
			return 0, err
		}
		return resp.GetProcessInstanceKey(), nil
	})
}

// HealthCheck asks the gateway for its topology.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return classify(err, "topology", 1)
	}
	return nil
}

// retry runs fn until it succeeds, fails permanently or exhausts r.
// Errors that are already application errors pass through untouched.
func retry[T any](ctx context.Context, r RetryConfig, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		var std *apperrors.StandardError
		if errors.As(err, &std) {
			return zero, err
		}
		if !transient(err) || attempt >= r.MaxRetries {
			return zero, classify(err, op, attempt+1)
		}

		t := time.NewTimer(r.delay(attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return zero, apperrors.NewTimeoutError("zeebe",
				fmt.Errorf("%s cancelled after %d attempts: %w", op, attempt+1, ctx.Err()))
		}
	}
}

func transient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	}
	return false
}

// classify maps a gateway error onto the application error codes.
func classify(err error, op string, attempts int) error {
	wrapped := fmt.Errorf("%s (attempts: %d): %w", op, attempts, err)
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTimeoutError("zeebe", wrapped)
	}

	switch status.Code(err) {
	case codes.DeadlineExceeded:
		return apperrors.NewTimeoutError("zeebe", wrapped)
	case codes.NotFound:
		return apperrors.NewNotFoundError("bpmn process", op)
	case codes.Unavailable, codes.ResourceExhausted, codes.Aborted:
		return apperrors.NewExternalServiceError("zeebe", wrapped)
	default:
		e := apperrors.NewExternalServiceError("zeebe", wrapped)
		e.Retryable = false
		return e
	}
}
