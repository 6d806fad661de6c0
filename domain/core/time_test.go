package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp_ZeroAndOrdering(t *testing.T) {
	var zero Timestamp
	assert.True(t, zero.IsZero())

	now := Now()
	assert.False(t, now.IsZero())
	assert.True(t, zero.Before(now))
}

func TestTimestamp_JSONRoundTrip(t *testing.T) {
	orig := NewTimestamp(time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC))

	data, err := json.Marshal(orig)
	require.NoError(t, err)

	var got Timestamp
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, orig.Time().Equal(got.Time()))
	assert.Equal(t, "2026-03-14T09:26:53Z", got.String())
}
