package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondValidationError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondValidationError(rec, "answer_text is required", "answer_text")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrorResponse{Error: ErrCodeValidationFailed, Message: "answer_text is required", Field: "answer_text"}, body)
}

func TestRespondConflict(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondConflict(rec, ErrCodeDuplicateSubmission, "already answered")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"duplicate_submission","message":"already answered"}`, rec.Body.String())
}
