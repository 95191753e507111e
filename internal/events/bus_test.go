package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	events []Event
	err    error
}

func (m *memStore) InsertEvent(_ context.Context, topic string, aggregateID uuid.UUID, payload []byte) (Event, error) {
	if m.err != nil {
		return Event{}, m.err
	}
	ev := Event{
		ID:          uuid.New(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now().UTC(),
	}
	m.events = append(m.events, ev)
	return ev, nil
}

type recordingNotifier struct {
	seen []Event
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, event Event) error {
	n.seen = append(n.seen, event)
	return n.err
}

func TestEmitPersistsAndNotifies(t *testing.T) {
	store := &memStore{}
	notifier := &recordingNotifier{}
	bus := &Bus{Store: store, Notifiers: []Notifier{notifier}}

	id := uuid.New()
	err := bus.Emit(context.Background(), TopicDealPaid, id, map[string]any{"dealNumber": 7})
	require.NoError(t, err)
	require.Len(t, store.events, 1)
	require.Len(t, notifier.seen, 1)
	require.Equal(t, TopicDealPaid, store.events[0].Topic)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(store.events[0].Payload, &payload))
	require.EqualValues(t, 7, payload["dealNumber"])
}

func TestEmitRequiresTopicAndAggregate(t *testing.T) {
	bus := &Bus{Store: &memStore{}}
	require.Error(t, bus.Emit(context.Background(), "", uuid.New(), nil))
	require.Error(t, bus.Emit(context.Background(), TopicDealPaid, uuid.Nil, nil))
}

func TestEmitStoreFailureIsFatal(t *testing.T) {
	boom := errors.New("db down")
	notifier := &recordingNotifier{}
	bus := &Bus{Store: &memStore{err: boom}, Notifiers: []Notifier{notifier}}

	err := bus.Emit(context.Background(), TopicCommissionCalculated, uuid.New(), nil)
	require.ErrorIs(t, err, boom)
	require.Empty(t, notifier.seen)
}

func TestEmitNotifierFailureKeepsEvent(t *testing.T) {
	store := &memStore{}
	bus := &Bus{Store: store, Notifiers: []Notifier{&recordingNotifier{err: errors.New("nope")}}}

	err := bus.Emit(context.Background(), TopicDealPaid, uuid.New(), nil)
	require.Error(t, err)
	require.Len(t, store.events, 1)
}

func TestEmitRejectsInvalidJSONPayload(t *testing.T) {
	bus := &Bus{Store: &memStore{}}
	err := bus.Emit(context.Background(), TopicDealPaid, uuid.New(), []byte("{not json"))
	require.Error(t, err)
}
