package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "bloodlink/pkg/domain"
)

type recordingSink struct {
	events []Event
	err    error
}

func (s *recordingSink) Publish(_ context.Context, event Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func TestPublisherEmitStampsTimestamp(t *testing.T) {
	store := NewInMemoryStore()
	publisher := NewPublisher(store)
	actor := id.NewUserID()

	err := publisher.Emit(context.Background(), Event{
		ActorID: actor,
		Action:  ActionRequestCreated,
		Outcome: OutcomeOK,
	})
	require.NoError(t, err)

	events, err := publisher.List(context.Background(), actor)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestPublisherEmitKeepsExplicitTimestamp(t *testing.T) {
	store := NewInMemoryStore()
	publisher := NewPublisher(store)
	actor := id.NewUserID()
	ts := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	err := publisher.Emit(context.Background(), Event{
		Timestamp: ts,
		ActorID:   actor,
		Action:    ActionRequestAccepted,
		Outcome:   OutcomeOK,
	})
	require.NoError(t, err)

	events, err := publisher.List(context.Background(), actor)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Timestamp.Equal(ts))
}

func TestPublisherFansOutToSinks(t *testing.T) {
	sink := &recordingSink{}
	publisher := NewPublisher(NewInMemoryStore(), WithSink(sink))

	err := publisher.Emit(context.Background(), Event{
		ActorID: id.NewUserID(),
		Action:  ActionContactDisclosed,
		Outcome: OutcomeOK,
	})
	require.NoError(t, err)
	assert.Len(t, sink.events, 1)
}

func TestPublisherSinkFailureDoesNotFailEmit(t *testing.T) {
	sink := &recordingSink{err: errors.New("broker down")}
	publisher := NewPublisher(NewInMemoryStore(), WithSink(sink))

	err := publisher.Emit(context.Background(), Event{
		ActorID: id.NewUserID(),
		Action:  ActionRequestRejected,
		Outcome: OutcomeOK,
	})
	assert.NoError(t, err)
}

func TestInMemoryStoreFiltersByActor(t *testing.T) {
	store := NewInMemoryStore()
	actorA := id.NewUserID()
	actorB := id.NewUserID()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, Event{ActorID: actorA, Action: ActionDonorRegistered}))
	require.NoError(t, store.Append(ctx, Event{ActorID: actorB, Action: ActionRequestCreated}))
	require.NoError(t, store.Append(ctx, Event{ActorID: actorA, Action: ActionRequestCancelled}))

	events, err := store.ListByActor(ctx, actorA)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ActionDonorRegistered, events[0].Action)
	assert.Equal(t, ActionRequestCancelled, events[1].Action)
}
