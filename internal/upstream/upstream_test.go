package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusErrorUnwrap(t *testing.T) {
	tests := []struct {
		status int
		target error
	}{
		{status: http.StatusTooManyRequests, target: ErrRateLimited},
		{status: http.StatusPaymentRequired, target: ErrCreditsExhausted},
	}
	for _, tt := range tests {
		err := error(&StatusError{StatusCode: tt.status})
		assert.ErrorIs(t, err, tt.target)
	}

	err := error(&StatusError{StatusCode: http.StatusBadGateway, Body: "upstream down"})
	assert.False(t, errors.Is(err, ErrRateLimited))
	assert.False(t, errors.Is(err, ErrCreditsExhausted))
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream down")
}

func TestNewRequest(t *testing.T) {
	req, err := NewRequest(context.Background(), "http://example.test/v1", "key-1", []byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "Bearer key-1", req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

	req, err = NewRequest(context.Background(), "http://example.test/v1", "", nil)
	require.NoError(t, err)
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestCheckResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte("fine"))
		case "/limited":
			http.Error(w, "slow down", http.StatusTooManyRequests)
		}
	}))
	defer server.Close()

	resp, err := http.Get(server.URL + "/ok")
	require.NoError(t, err)
	assert.NoError(t, CheckResponse(resp))
	CloseBody(resp)

	resp, err = http.Get(server.URL + "/limited")
	require.NoError(t, err)
	err = CheckResponse(resp)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Equal(t, "slow down", se.Body)
	assert.ErrorIs(t, err, ErrRateLimited)
}
