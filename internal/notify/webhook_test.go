package notify_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/salusa-dev/backend-klinik/internal/events"
	"github.com/salusa-dev/backend-klinik/internal/notify"
)

func testEvent() events.Event {
	return events.Event{
		ID:          "ev-1",
		Topic:       events.TopicOrderSubmitted,
		AggregateID: "order-1",
		Payload:     json.RawMessage(`{"orderId":"order-1","grandTotal":450}`),
		OccurredAt:  time.Now(),
	}
}

func TestWebhookNotifySignsAndDelivers(t *testing.T) {
	var (
		gotSignature string
		gotTimestamp string
		gotEventID   string
		gotBody      []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Signature")
		gotTimestamp = r.Header.Get("X-Timestamp")
		gotEventID = r.Header.Get("X-Event-ID")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	hook := &notify.Webhook{URL: srv.URL, Secret: "s3cret", Enabled: true, Client: srv.Client()}
	require.NoError(t, hook.Notify(context.Background(), testEvent()))

	require.Equal(t, "ev-1", gotEventID)
	require.NotEmpty(t, gotTimestamp)

	var ts int64
	require.NoError(t, json.Unmarshal([]byte(gotTimestamp), &ts))
	require.Equal(t, notify.ComputeSignature("s3cret", ts, "ev-1", gotBody), gotSignature)

	var payload struct {
		EventID string          `json:"eventId"`
		Topic   string          `json:"topic"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	require.Equal(t, events.TopicOrderSubmitted, payload.Topic)
	require.JSONEq(t, `{"orderId":"order-1","grandTotal":450}`, string(payload.Data))
}

func TestWebhookNotifyFailsOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	hook := &notify.Webhook{URL: srv.URL, Secret: "s3cret", Enabled: true, Client: srv.Client()}
	require.Error(t, hook.Notify(context.Background(), testEvent()))
}

func TestWebhookNotifyDisabled(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	defer srv.Close()

	hook := &notify.Webhook{URL: srv.URL, Secret: "s3cret", Enabled: false, Client: srv.Client()}
	require.NoError(t, hook.Notify(context.Background(), testEvent()))
	require.False(t, called)
}

func TestWebhookNotifyRejectsRemoteHTTP(t *testing.T) {
	hook := &notify.Webhook{URL: "http://example.com/hook", Secret: "s3cret", Enabled: true}
	require.Error(t, hook.Notify(context.Background(), testEvent()))
}
