package senddigest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "beacon/internal/common/errors"
	"beacon/internal/common/logger"
	"beacon/internal/notify"
	"beacon/internal/opportunity"
)

// ==========================
// Mock Digester
// ==========================

type MockDigester struct {
	mock.Mock
}

func (m *MockDigester) SendDigest(ctx context.Context) (opportunity.DigestResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(opportunity.DigestResult), args.Error(1)
}

// ==========================
// Execute
// ==========================

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name     string
		result   opportunity.DigestResult
		err      error
		want     Output
		wantCode apperrors.ErrorCode
	}{
		{
			name: "digest sent",
			result: opportunity.DigestResult{
				Opportunities: 2,
				Result:        notify.Result{Attempted: 3, Sent: 3},
			},
			want: Output{Opportunities: 2, Sent: 3},
		},
		{
			name: "partial delivery still completes",
			result: opportunity.DigestResult{
				Opportunities: 1,
				Result: notify.Result{
					Attempted: 2, Sent: 1, Failed: 1,
					Failures: []error{errors.New("b@example.com: rejected")},
				},
			},
			want: Output{Opportunities: 1, Sent: 1, Failed: 1},
		},
		{
			name: "nothing new",
			want: Output{},
		},
		{
			name:     "status lookup fails",
			err:      apperrors.NewDatabaseConnectionFailedError(errors.New("dial tcp: refused")),
			wantCode: apperrors.ErrCodeDatabaseConnectionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			digester := new(MockDigester)
			digester.On("SendDigest", mock.Anything).Return(tt.result, tt.err).Once()

			h, err := NewHandler(HandlerOptions{
				CustomConfig: DefaultConfig(),
				Digester:     digester,
				Logger:       logger.NewTestLogger(t),
			})
			require.NoError(t, err)

			out, err := h.Execute(context.Background())
			digester.AssertExpectations(t)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Opportunities, out.Opportunities)
			assert.Equal(t, tt.want.Sent, out.Sent)
			assert.Equal(t, tt.want.Failed, out.Failed)
			assert.False(t, out.SentAt.IsZero())
		})
	}
}

func TestHandler_DisabledSkips(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	digester := new(MockDigester)
	h, err := NewHandler(HandlerOptions{
		CustomConfig: cfg,
		Digester:     digester,
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)

	out, err := h.Execute(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Skipped)
	digester.AssertNotCalled(t, "SendDigest", mock.Anything)
	assert.False(t, h.IsEnabled())
}
