package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"workflow-engine/internal/common/errors"
)

func testClient() *Client {
	return NewClient(WithTimeout(2 * time.Second)).WithRetryConfig(&RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	})
}

func TestClient_GetParsesJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"42","name":"general"}`))
	}))
	defer server.Close()

	resp, err := testClient().Get(context.Background(), server.URL, "tok", nil)
	require.NoError(t, err)
	require.True(t, resp.IsSuccess())

	body, ok := resp.BodyMap()
	require.True(t, ok)
	assert.Equal(t, "42", body["id"])
}

func TestClient_NonJSONBodyFallsBackToString(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain text"))
	}))
	defer server.Close()

	resp, err := testClient().Get(context.Background(), server.URL, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", resp.Body)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	resp, err := testClient().Get(context.Background(), server.URL, "", nil)
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"missing field"}`))
	}))
	defer server.Close()

	resp, err := testClient().Get(context.Background(), server.URL, "", nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClient_PostJSONSetsContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"1"}`))
	}))
	defer server.Close()

	resp, err := testClient().PostJSON(context.Background(), server.URL, map[string]string{"content": "hi"}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestClient_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := testClient().Get(ctx, server.URL, "", nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeTimeout))
}
