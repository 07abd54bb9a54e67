package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardError_IsAndCodeOf(t *testing.T) {
	err := fmt.Errorf("fetch: %w", NewFetchFailedError(stderrors.New("connection reset")))

	assert.True(t, stderrors.Is(err, &StandardError{Code: ErrCodeFetchFailed}))
	assert.False(t, stderrors.Is(err, &StandardError{Code: ErrCodeAuthFailed}))
	assert.Equal(t, ErrCodeFetchFailed, CodeOf(err))
	assert.True(t, HasCode(err, ErrCodeFetchFailed))

	assert.Equal(t, ErrorCode(""), CodeOf(stderrors.New("plain")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}

func TestStandardError_Error(t *testing.T) {
	assert.Equal(t, "StandardError[NO_CONVERSATION]: No conversation identifier available",
		NewNoConversationError().Error())
	assert.Contains(t, NewInvalidInputError("bad json").Error(), ": bad json")
}

func TestRetryability(t *testing.T) {
	tests := []struct {
		err       *StandardError
		retryable bool
		retries   int
		category  string
	}{
		{NewRateLimitedError(2 * time.Second), true, 3, "FETCH"},
		{NewFetchFailedError(stderrors.New("eof")), true, 3, "FETCH"},
		{NewCacheFailedError(stderrors.New("down")), true, 2, "STORAGE"},
		{NewReportPersistFailedError(stderrors.New("down")), true, 2, "STORAGE"},
		{NewTokenExpiredError(""), false, 0, "AUTH"},
		{NewNotLoggedInError(""), false, 0, "AUTH"},
		{NewExtractionFailedError("no mapping"), false, 0, "EXTRACTION"},
		{NewExportFailedError(stderrors.New("x")), false, 0, "EXPORT"},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.err.Retryable)
			assert.Equal(t, tt.retries, GetRetryCount(tt.err.Code))
			assert.Equal(t, tt.category, GetErrorCategory(tt.err.Code))
		})
	}
}

func TestRateLimitedDetails(t *testing.T) {
	assert.Equal(t, "retryAfter: 2s", NewRateLimitedError(2*time.Second).Details)
	assert.Empty(t, NewRateLimitedError(0).Details)
}

func TestConvertToBPMNError(t *testing.T) {
	bpmn := ConvertToBPMNError(NewTokenExpiredError("401"))
	assert.Equal(t, "TOKEN_EXPIRED", bpmn.Code)
	assert.Equal(t, 0, bpmn.Retries)

	vars := bpmn.ToErrorVariables()
	assert.Equal(t, "TOKEN_EXPIRED", vars["errorCode"])
	assert.Equal(t, "401", vars["errorDetails"])
	assert.Equal(t, "TOKEN_EXPIRED", vars["originalErrorCode"])
	assert.NotEmpty(t, vars["timestamp"])

	nonRetryable := NewFetchFailedError(stderrors.New("x"))
	nonRetryable.Retryable = false
	assert.Equal(t, 0, ConvertToBPMNError(nonRetryable).Retries)
}

func TestNormalize(t *testing.T) {
	std := NewCacheFailedError(stderrors.New("down"))
	assert.Same(t, std, Normalize(fmt.Errorf("wrap: %w", std)))

	other := Normalize(stderrors.New("boom"))
	assert.Equal(t, ErrorCode("INTERNAL_ERROR"), other.Code)
	assert.Equal(t, "boom", other.Details)
	assert.False(t, other.Retryable)
}

func TestRetriesFor(t *testing.T) {
	job := func(retries int32) entities.Job {
		return entities.Job{ActivatedJob: &pb.ActivatedJob{Retries: retries}}
	}
	assert.Equal(t, int32(1), RetriesFor(job(2), 3))
	assert.Equal(t, int32(3), RetriesFor(job(5), 3))
	assert.Equal(t, int32(3), RetriesFor(job(0), 3))
}

func TestInformational(t *testing.T) {
	assert.True(t, IsInformational(NewNoSearchQueriesError("c1").Code))
	assert.False(t, IsInformational(ErrCodeExtractionFailed))
	assert.False(t, IsRetryableErrorCode(ErrCodeNoSearchQueries))
	require.True(t, IsRetryableErrorCode(ErrCodeRateLimited))
}
