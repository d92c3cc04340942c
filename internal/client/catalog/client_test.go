package catalog

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ddjsphere/craftsmen-marketplace/pkg/errors"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/httpclient"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httpclient.CircuitBreakerClient) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	base := httpclient.NewWithHTTPClient(srv.Client(), httpclient.Config{
		Timeout:      time.Second,
		MaxRetries:   0,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: time.Millisecond,
	})
	cb := httpclient.NewCircuitBreakerClient(base, httpclient.CircuitBreakerConfig{
		Name:         t.Name(),
		MaxRequests:  1,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  2,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	return NewClient(srv.URL+"/", cb), cb
}

func TestClient_GetItem(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/items/bowl-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"item":{"id":"bowl-1","title":"Bowl","price":"19.99","ownerId":"a1","active":true}}`)
	})

	item, err := c.GetItem(context.Background(), "bowl-1")
	require.NoError(t, err)
	assert.Equal(t, "Bowl", item.Title)
	assert.Equal(t, "19.99", item.Price.String())
	assert.Equal(t, "a1", item.OwnerID)
}

func TestClient_GetItem_NotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"success":false,"error":"no such item","code":"NOT_FOUND"}`)
	})

	_, err := c.GetItem(context.Background(), "ghost")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "ghost")
}

func TestClient_GetItem_ServerErrorsOpenCircuit(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 2; i++ {
		_, err := c.GetItem(context.Background(), "x")
		assert.ErrorIs(t, err, apperrors.ErrUpstream)
	}

	_, err := c.GetItem(context.Background(), "x")
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_GetItem_EmptyPayload(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"success":true}`)
	})

	_, err := c.GetItem(context.Background(), "x")
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
}
