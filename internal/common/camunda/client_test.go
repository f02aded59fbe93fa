package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"beacon/internal/common/config"
	apperrors "beacon/internal/common/errors"
)

var fastRetry = RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

// ==========================
// Configuration
// ==========================

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.CamundaConfig{BrokerAddress: "zeebe:26500", Timeout: 1500})
	assert.Equal(t, "zeebe:26500", cfg.GatewayAddress)
	assert.Equal(t, 1500*time.Millisecond, cfg.RequestTimeout)
	assert.Equal(t, DefaultRetryConfig, cfg.Retry)

	cfg = ConfigFrom(config.CamundaConfig{BrokerAddress: "zeebe:26500"})
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestNewClient_RequiresAddress(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeConfigInvalid, apperrors.CodeOf(err))
}

func TestRetryConfig_Delay(t *testing.T) {
	r := RetryConfig{BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	assert.Equal(t, time.Second, r.delay(0))
	assert.Equal(t, 4*time.Second, r.delay(2))
	assert.Equal(t, 5*time.Second, r.delay(3))
	assert.Equal(t, 5*time.Second, r.delay(70))
}

// ==========================
// Retry
// ==========================

func TestRetry(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantCode  apperrors.ErrorCode
	}{
		{
			name:      "succeeds first time",
			wantCalls: 1,
		},
		{
			name:      "transient then success",
			errs:      []error{status.Error(codes.Unavailable, "gateway down")},
			wantCalls: 2,
		},
		{
			name: "transient until exhausted",
			errs: []error{
				status.Error(codes.Unavailable, "down"),
				status.Error(codes.Unavailable, "down"),
				status.Error(codes.Unavailable, "down"),
			},
			wantCalls: 3,
			wantCode:  apperrors.ErrCodeExternalService,
		},
		{
			name:      "permanent failure stops at once",
			errs:      []error{status.Error(codes.PermissionDenied, "nope")},
			wantCalls: 1,
			wantCode:  apperrors.ErrCodeExternalService,
		},
		{
			name:      "missing process",
			errs:      []error{status.Error(codes.NotFound, "no process")},
			wantCalls: 1,
			wantCode:  apperrors.ErrCodeNotFound,
		},
		{
			name:      "application error passes through",
			errs:      []error{apperrors.NewValidationError(apperrors.FieldError{Field: "variables"})},
			wantCalls: 1,
			wantCode:  apperrors.ErrCodeValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			v, err := retry(context.Background(), fastRetry, "op", func(context.Context) (int64, error) {
				calls++
				if calls <= len(tt.errs) {
					return 0, tt.errs[calls-1]
				}
				return 42, nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, int64(42), v)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
		})
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	slow := RetryConfig{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}

	_, err := retry(ctx, slow, "op", func(context.Context) (int, error) {
		cancel()
		return 0, status.Error(codes.Unavailable, "down")
	})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeTimeout, apperrors.CodeOf(err))
	assert.True(t, errors.Is(err, context.Canceled))
}

// ==========================
// Classification
// ==========================

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      apperrors.ErrorCode
		retryable bool
	}{
		{"unavailable", status.Error(codes.Unavailable, "x"), apperrors.ErrCodeExternalService, true},
		{"exhausted", status.Error(codes.ResourceExhausted, "x"), apperrors.ErrCodeExternalService, true},
		{"deadline status", status.Error(codes.DeadlineExceeded, "x"), apperrors.ErrCodeTimeout, true},
		{"context deadline", context.DeadlineExceeded, apperrors.ErrCodeTimeout, true},
		{"invalid argument", status.Error(codes.InvalidArgument, "x"), apperrors.ErrCodeExternalService, false},
		{"plain error", errors.New("boom"), apperrors.ErrCodeExternalService, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.err, "op", 1)
			assert.Equal(t, tt.code, apperrors.CodeOf(err))
			assert.Equal(t, tt.retryable, apperrors.IsRetryable(err))
		})
	}
}
