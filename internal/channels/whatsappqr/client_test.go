package whatsappqr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sessions/s-1/messages", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("X-Api-Key"))
		var body sendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, sendRequest{To: "56911111111", Text: "Hola"}, body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messageId":"3EB0ABC"}`))
	}))
	defer srv.Close()

	id, err := New(Config{BaseURL: srv.URL, APIKey: "k"}).SendText(context.Background(), "s-1", "56911111111", "Hola")
	require.NoError(t, err)
	assert.Equal(t, "3EB0ABC", id)
}

func TestSendTextNotConnected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"session not connected"}`))
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}).SendText(context.Background(), "s-1", "1", "x")
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestSendTextServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream"}`))
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}).SendText(context.Background(), "s-1", "1", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream")
	assert.NotErrorIs(t, err, ErrNotConnected)
}
