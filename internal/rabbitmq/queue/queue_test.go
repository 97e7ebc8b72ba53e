package queue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, "exam", CategoryOf(EventExamUpdated))
	assert.Equal(t, "user", CategoryOf(EventUserCreated))
	assert.Equal(t, "streak", CategoryOf(EventStreakCreated))
	assert.Equal(t, "weird", CategoryOf("weird"))
}

func TestCategories_CoverEveryEvent(t *testing.T) {
	events := []string{
		EventUserCreated,
		EventExamCreated, EventExamUpdated, EventExamDeleted,
		EventEventCreated,
		EventSessionCreated, EventSessionFinished,
		EventStreakCreated,
	}

	for _, event := range events {
		keys, ok := Categories[CategoryOf(event)]
		require.True(t, ok, "category for %s", event)
		assert.Contains(t, keys, event)
	}
}

func TestEnvelope_RoundTrip(t *testing.T) {
	env := Envelope{
		Event:    EventExamCreated,
		Attempts: 2,
		Payload:  json.RawMessage(`{"userId":"user-1"}`),
	}

	body, err := json.Marshal(env)
	require.NoError(t, err)

	var got Envelope
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, env.Event, got.Event)
	assert.Equal(t, env.Attempts, got.Attempts)
	assert.JSONEq(t, string(env.Payload), string(got.Payload))
}
