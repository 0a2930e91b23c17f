package pkg

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		ErrNotFound:                         http.StatusNotFound,
		fmt.Errorf("room: %w", ErrNotFound): http.StatusNotFound,
		ErrForbidden:                        http.StatusForbidden,
		ErrMissingProfile:                   http.StatusBadRequest,
		ErrUnavailable:                      http.StatusBadGateway,
		ErrRateLimited:                      http.StatusTooManyRequests,
		fmt.Errorf("boom"):                  http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusFor(err), err.Error())
	}
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, CodeRoomUnknown, ErrorCode(fmt.Errorf("x: %w", ErrNotFound), CodeRoomUnknown))
	assert.Equal(t, CodeCallUnknown, ErrorCode(ErrNotFound, CodeCallUnknown))
	assert.Equal(t, CodeDenied, ErrorCode(ErrForbidden, CodeRoomUnknown))
	assert.Equal(t, CodeMissingProfile, ErrorCode(ErrMissingProfile, CodeRoomUnknown))
	assert.Equal(t, CodeFailed, ErrorCode(ErrUnavailable, CodeRoomUnknown))
	assert.Equal(t, CodeRateLimited, ErrorCode(ErrRateLimited, CodeCallUnknown))
	assert.Equal(t, CodeInternal, ErrorCode(fmt.Errorf("db down"), CodeRoomUnknown))
}

func TestJSONEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusOK, map[string]string{"url": "https://bbb.example/join"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":true,"data":{"url":"https://bbb.example/join"}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	Error(rec, fmt.Errorf("lookup: %w", ErrForbidden))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"lookup: forbidden"}`, rec.Body.String())
}
