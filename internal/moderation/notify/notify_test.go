package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modsentinel/automod/infrastructure/logging"
)

func TestHTTPSink_SendModmailPostsExpectedPayload(t *testing.T) {
	var got notifyRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := NewHTTPSink(server.URL, logging.New("test", "info", "json"))
	err := sink.SendModmail(context.Background(), "t5_sub", "budget alert", "daily spend exceeded")
	require.NoError(t, err)
	assert.Equal(t, "modmail", got.Kind)
	assert.Equal(t, "t5_sub", got.SubredditID)
	assert.Equal(t, "budget alert", got.Subject)
}

func TestHTTPSink_SendPMReturnsErrorOnNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sink := NewHTTPSink(server.URL, logging.New("test", "info", "json"))
	err := sink.SendPM(context.Background(), "alice", "hi", "body")
	assert.Error(t, err)
}

func TestLoggingSink_NeverErrors(t *testing.T) {
	sink := NewLoggingSink(logging.New("test", "info", "json"))
	assert.NoError(t, sink.SendModmail(context.Background(), "t5_sub", "s", "b"))
	assert.NoError(t, sink.SendPM(context.Background(), "alice", "s", "b"))
}
