package payload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateTime(t *testing.T) {
	got, err := DateTime("2026-03-12", "14:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 12, 14, 30, 0, 0, time.Local), got)
}

func TestDateTime_MissingClockDefaultsToEndOfDay(t *testing.T) {
	got, err := DateTime("2026-03-12", "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 12, 23, 59, 0, 0, time.Local), got)
}

func TestDateTime_Unparseable(t *testing.T) {
	_, err := DateTime("12/03/2026", "14:30")
	assert.Error(t, err)

	_, err = DateTime("2026-03-12", "2pm")
	assert.Error(t, err)
}

func TestInstant(t *testing.T) {
	got, err := Instant("2026-03-12T14:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 12, 14, 30, 0, 0, time.UTC), got)

	_, err = Instant("yesterday")
	assert.Error(t, err)
}
