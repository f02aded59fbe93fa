package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardError_IsMatchesByCode(t *testing.T) {
	err := NewNotFoundError("opportunity", 42)
	wrapped := fmt.Errorf("load: %w", err)

	assert.True(t, stderrors.Is(wrapped, ErrNotFound))
	assert.False(t, stderrors.Is(wrapped, ErrUnauthorized))
	assert.True(t, IsNotFound(wrapped))
	assert.Equal(t, ErrCodeNotFound, CodeOf(wrapped))
}

func TestNewValidationError_ListsFields(t *testing.T) {
	err := NewValidationError(
		FieldError{Field: "submissionEnd", Rule: "required", Message: "is required"},
		FieldError{Field: "qaEnd", Rule: "required_with", Message: "required when Q&A is enabled"},
	)

	require.Len(t, err.Fields, 2)
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "submissionEnd: is required (required)")
	assert.Contains(t, err.Error(), "qaEnd")
}

func TestUnauthorizedError_DoesNotLeakDetails(t *testing.T) {
	err := NewUnauthorizedError("edit opportunity")
	assert.Empty(t, err.Details)
	assert.Equal(t, "StandardError[UNAUTHORIZED]: not allowed to edit opportunity", err.Error())
}

func TestAsStandard_WrapsPlainErrors(t *testing.T) {
	plain := stderrors.New("boom")
	stdErr := AsStandard(plain)

	assert.Equal(t, ErrCodeInternal, stdErr.Code)
	assert.Equal(t, "boom", stdErr.Details)
	assert.True(t, stderrors.Is(stdErr, plain))
	assert.Nil(t, AsStandard(nil))
}

func TestDispatchFailedError_Unwraps(t *testing.T) {
	cause := stderrors.New("mailbox unavailable")
	err := NewDispatchFailedError("a@example.com", cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, stderrors.Is(err, ErrDispatchFailed))
	assert.True(t, IsRetryable(err))
}

func TestGetRetryCount(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeDatabaseConnectionFailed, 3},
		{ErrCodeQueryExecutionFailed, 3},
		{ErrCodeExternalService, 2},
		{ErrCodeDispatchFailed, 2},
		{ErrCodeValidationFailed, 0},
		{ErrCodeNotFound, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, GetRetryCount(tt.code))
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "caller", GetErrorCategory(ErrCodeUnauthorized))
	assert.Equal(t, "database", GetErrorCategory(ErrCodeQueryExecutionFailed))
	assert.Equal(t, "notification", GetErrorCategory(ErrCodeDispatchFailed))
	assert.Equal(t, "external", GetErrorCategory(ErrCodeTimeout))
	assert.Equal(t, "configuration", GetErrorCategory(ErrCodeConfigInvalid))
	assert.Equal(t, "internal", GetErrorCategory(ErrCodeInternal))
}

func TestVariables_IncludesMetadata(t *testing.T) {
	err := NewExternalServiceError("ses", stderrors.New("throttled")).WithMetadata("recipient", "v@example.com")
	vars := Variables(err)

	assert.Equal(t, "EXTERNAL_SERVICE_ERROR", vars["errorCode"])
	assert.Equal(t, true, vars["retryable"])
	assert.Equal(t, "v@example.com", vars["recipient"])
}
