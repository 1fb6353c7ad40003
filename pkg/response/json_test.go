package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fkhayef/eventcheckin/pkg/apperr"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var body APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestFail_EligibilityIsUnprocessable(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(rec, zap.NewNop(), apperr.New(apperr.LimitExceeded, "event is full"), "Failed to register")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode(t, rec)
	assert.False(t, body.Success)
	assert.Equal(t, "LIMIT_EXCEEDED", body.Error.Code)
	assert.Equal(t, "event is full", body.Error.Message)
}

func TestFail_InternalIsOpaque(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(rec, zap.NewNop(), errors.New("pq: connection refused"), "Failed to register")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Failed to register", body.Error.Message)
}

func TestFail_StorageIsOpaque(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(rec, zap.NewNop(), apperr.Wrap(apperr.Storage, "failed to write /data/checkins/9", errors.New("disk full")), "Failed to check in")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "STORAGE_ERROR", body.Error.Code)
	assert.Equal(t, "Failed to check in", body.Error.Message)
}

func TestFail_ValidationCarriesFields(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(rec, zap.NewNop(), apperr.Invalid(map[string]string{"phone": "phone is already in use"}), "x")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "phone is already in use", body.Error.Fields["phone"])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(apperr.NotFound))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(apperr.Conflict))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(apperr.InvalidState))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(apperr.Unauthenticated))
	assert.Equal(t, http.StatusForbidden, StatusFor(apperr.Unauthorized))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(apperr.Storage))
}

func TestPageParams(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?page=0&per_page=500", nil)
	page, perPage := PageParams(r)
	assert.Equal(t, 1, page)
	assert.Equal(t, DefaultPerPage, perPage)

	meta := NewMeta(2, 10, 21)
	assert.Equal(t, 3, meta.TotalPages)
}
