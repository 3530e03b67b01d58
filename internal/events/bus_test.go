package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/salusa-dev/backend-klinik/internal/events"
)

type stubStore struct {
	lastTopic     string
	lastAggregate string
	lastPayload   []byte
}

func (s *stubStore) InsertDomainEvent(_ context.Context, topic, aggregateID string, payload []byte) (events.Event, error) {
	s.lastTopic = topic
	s.lastAggregate = aggregateID
	s.lastPayload = payload
	return events.Event{
		ID:          uuid.NewString(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now(),
	}, nil
}

type captureNotifier struct {
	events []events.Event
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return c.err
}

func TestEmitPersistsAndFansOut(t *testing.T) {
	store := &stubStore{}
	first := &captureNotifier{}
	second := &captureNotifier{}
	bus := events.Bus{Store: store, Notifiers: []events.Notifier{first, second}}

	event, err := bus.Emit(context.Background(), events.TopicOrderSubmitted, "order-1", map[string]any{"grandTotal": 450})
	require.NoError(t, err)
	require.Equal(t, events.TopicOrderSubmitted, store.lastTopic)
	require.Equal(t, "order-1", store.lastAggregate)
	require.JSONEq(t, `{"grandTotal":450}`, string(store.lastPayload))
	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
	require.Equal(t, event.ID, first.events[0].ID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	require.Equal(t, float64(450), decoded["grandTotal"])
}

func TestEmitJoinsNotifierErrors(t *testing.T) {
	store := &stubStore{}
	failing := &captureNotifier{err: errors.New("webhook down")}
	ok := &captureNotifier{}
	bus := events.Bus{Store: store, Notifiers: []events.Notifier{failing, ok}}

	event, err := bus.Emit(context.Background(), events.TopicOrderSubmitted, "order-2", nil)
	require.Error(t, err)
	require.NotEmpty(t, event.ID)
	// the failing notifier never blocks the rest of the fan-out
	require.Len(t, ok.events, 1)
}

func TestEmitValidatesInput(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}

	_, err := bus.Emit(context.Background(), "", "order-1", nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), events.TopicOrderSubmitted, " ", nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), events.TopicOrderSubmitted, "order-1", json.RawMessage(`{not json`))
	require.Error(t, err)
}
