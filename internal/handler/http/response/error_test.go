package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", validator.ValidationErrors{{Field: "site_id", Message: "is required"}}, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"not found", payroll.ErrRunNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"forbidden", payroll.ErrRunForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"conflict", payroll.ErrRunExists, http.StatusConflict, "CONFLICT"},
		{"lock timeout", fmt.Errorf("%w (deadline)", payroll.ErrRunLockTimeout), http.StatusConflict, "CONFLICT"},
		{"invalid transition", payroll.ErrRunLocked, http.StatusConflict, "INVALID_TRANSITION"},
		{"precondition", payroll.ErrNoAttendance, http.StatusPreconditionFailed, "PRECONDITION_FAILED"},
		{"aggregate", payroll.ErrTotalsMismatch, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.wantCode, body.Error.Code)
		})
	}
}

func TestHandleError_ValidationDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleError(rec, validator.ValidationErrors{{Field: "payroll_month", Message: "must be at most 12"}})

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "must be at most 12", body.Error.Details["payroll_month"])
}
