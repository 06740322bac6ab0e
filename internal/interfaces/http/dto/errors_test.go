package dto

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeErrorCode(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"NOT_FOUND", ErrCodeNotFound},
		{"RUN_IN_PROGRESS", ErrCodeRunInProgress},
		{"DRAFT_NOT_EDITABLE", ErrCodeNotEditable},
		{"DRAFT_ALREADY_EXISTS", ErrCodeAlreadyExists},
		{"INVALID_PERIOD", ErrCodeInvalidPeriod},
		{"ERR_INTERNAL", ErrCodeInternal},
		{"SOMETHING_NEW", "SOMETHING_NEW"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeErrorCode(tt.code))
		})
	}
}

func TestGetHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(ErrCodeRunInProgress))
	assert.Equal(t, http.StatusNotFound, GetHTTPStatus(ErrCodeNotFound))
	assert.Equal(t, http.StatusBadRequest, GetHTTPStatus(ErrCodeValidation))
	assert.Equal(t, http.StatusServiceUnavailable, GetHTTPStatus(ErrCodeUnavailable))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus("SOMETHING_NEW"))
}

func TestResponses(t *testing.T) {
	ok := NewSuccessResponse(map[string]int{"done": 2})
	assert.True(t, ok.Success)
	assert.Nil(t, ok.Error)

	failed := NewValidationErrorResponse("Request validation failed", "req-1", []ValidationDetail{{Field: "total", Message: "This field is required"}})
	assert.False(t, failed.Success)
	assert.Equal(t, ErrCodeValidation, failed.Error.Code)
	assert.Equal(t, "req-1", failed.Error.RequestID)
	assert.Len(t, failed.Error.Details, 1)
}
