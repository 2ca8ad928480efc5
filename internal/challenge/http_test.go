package challenge_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/challenge-engine/internal/challenge"
	httperrors "github.com/gokatarajesh/challenge-engine/pkg/http/errors"
)

func newTestMux(f *fixture) *http.ServeMux {
	mux := http.NewServeMux()
	challenge.NewHTTPHandler(f.svc, zerolog.Nop()).Register(mux)
	return mux
}

func do(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httperrors.ErrorResponse {
	t.Helper()
	var resp httperrors.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHTTPSubmitFlow(t *testing.T) {
	f := newFixture(t, challenge.VariantDaily, nil)
	mux := newTestMux(f)
	e := f.activeEntity(t)
	f.clock.Set(at(9, 30))

	path := "/v1/daily_challenge/challenges/" + e.ID.String() + "/submissions"
	rec := do(t, mux, http.MethodPost, path, `{"submitter_id":"u1","answer_text":"42"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res challenge.SubmitResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.True(t, res.Submission.IsCorrect)
	assert.Equal(t, 10, res.Submission.Score)
	assert.True(t, res.LeaderChanged)

	rec = do(t, mux, http.MethodPost, path, `{"submitter_id":"u1","answer_text":"41"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, httperrors.ErrCodeDuplicateSubmission, decodeError(t, rec).Error)

	rec = do(t, mux, http.MethodPost, path, `{"submitter_id":"","answer_text":"41"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httperrors.ErrCodeValidationFailed, decodeError(t, rec).Error)

	rec = do(t, mux, http.MethodPost, path, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httperrors.ErrCodeInvalidRequest, decodeError(t, rec).Error)

	rec = do(t, mux, http.MethodGet, "/v1/daily_challenge/challenges/"+e.ID.String()+"/leaderboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var board challenge.Leaderboard
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&board))
	require.Len(t, board.Entries, 1)
	assert.Equal(t, "u1", board.Entries[0].SubmitterID)
}

func TestHTTPSubmitOutsideWindow(t *testing.T) {
	f := newFixture(t, challenge.VariantDaily, nil)
	mux := newTestMux(f)
	e, _, err := f.svc.CreateIfAbsent(t.Context(), testDay)
	require.NoError(t, err)

	rec := do(t, mux, http.MethodPost, "/v1/daily_challenge/challenges/"+e.ID.String()+"/submissions", `{"submitter_id":"u1","answer_text":"42"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, httperrors.ErrCodeInactiveWindow, decodeError(t, rec).Error)
}

func TestHTTPLookupErrors(t *testing.T) {
	f := newFixture(t, challenge.VariantDaily, nil)
	mux := newTestMux(f)

	rec := do(t, mux, http.MethodGet, "/v1/daily_challenge/challenges/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httperrors.ErrCodeInvalidID, decodeError(t, rec).Error)

	rec = do(t, mux, http.MethodGet, "/v1/daily_challenge/challenges/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, mux, http.MethodGet, "/v1/daily_challenge/today", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, mux, http.MethodGet, "/v1/daily_challenge/history?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "limit", decodeError(t, rec).Field)
}

func TestHTTPViewHidesAnswers(t *testing.T) {
	f := newFixture(t, challenge.VariantDaily, nil)
	mux := newTestMux(f)
	f.activeEntity(t)
	f.submit(t, challenge.SubmitRequest{EntityID: f.mustToday(t).ID, SubmitterID: "u1", AnswerText: "42"})

	rec := do(t, mux, http.MethodGet, "/v1/daily_challenge/today", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "expected_answer")
	assert.NotContains(t, body, "answer_text")
	assert.Contains(t, body, `"submission_count":1`)
}

func TestHTTPLifecycleRoutes(t *testing.T) {
	f := newFixture(t, challenge.VariantIndividual, nil)
	mux := newTestMux(f)

	rec := do(t, mux, http.MethodPost, "/v1/individual_question/days/"+testDay+"/post?immediate=true", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"active"`)

	e := f.mustToday(t)
	f.clock.Set(e.WindowEnd.Add(1))
	rec = do(t, mux, http.MethodPost, "/v1/individual_question/tick", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, mux, http.MethodGet, "/v1/individual_question/challenges/"+e.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"closed"`)

	rec = do(t, mux, http.MethodGet, "/v1/daily_challenge/today", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "other variant's routes are not mounted")
}

func (f *fixture) mustToday(t *testing.T) *challenge.Entity {
	t.Helper()
	e, err := f.svc.GetToday(t.Context())
	require.NoError(t, err)
	return e
}
