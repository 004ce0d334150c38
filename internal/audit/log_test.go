package audit

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "bloodlink/pkg/domain"
	"bloodlink/pkg/requestcontext"
)

func TestLogLiftsKnownAttrsOntoDetails(t *testing.T) {
	publisher := NewPublisher(NewInMemoryStore())
	actor := id.NewUserID()
	ctx := requestcontext.WithRequestID(context.Background(), "req-123")

	Log(ctx, slog.New(slog.DiscardHandler), publisher, Event{
		ActorID: actor,
		Action:  ActionContactDisclosed,
		Outcome: OutcomeDenied,
	}, "reason", "donor not accepted", "attempt", 2)

	events, err := publisher.List(ctx, actor)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "donor not accepted", events[0].Details["reason"])
	assert.NotContains(t, events[0].Details, "attempt", "non-string values are skipped")
}

func TestLogLeavesDetailsNilWithoutKnownKeys(t *testing.T) {
	publisher := NewPublisher(NewInMemoryStore())
	actor := id.NewUserID()

	Log(context.Background(), slog.New(slog.DiscardHandler), publisher, Event{
		ActorID: actor,
		Action:  ActionRequestCreated,
		Outcome: OutcomeOK,
	})

	events, err := publisher.List(context.Background(), actor)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Nil(t, events[0].Details)
}

func TestLogToleratesNilLoggerAndEmitter(t *testing.T) {
	assert.NotPanics(t, func() {
		Log(context.Background(), nil, nil, Event{Action: ActionContactDisclosed})
	})
}
