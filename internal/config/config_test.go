package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	c, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "billNotifications", c.Queue.Name)
	assert.Equal(t, 3, c.Queue.MaxAttempts)
	assert.Equal(t, 2*time.Second, c.Queue.BackoffBase)
	assert.True(t, c.Queue.RemoveOnComplete)
	assert.Equal(t, "billq", c.Redis.KeyPrefix)
	assert.Equal(t, "info", c.Log.Level)
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("Redis_Address", "redis:6380")
	t.Setenv("Queue_MaxAttempts", "5")
	t.Setenv("Queue_BackoffBase", "250ms")
	t.Setenv("Admin_CORSOrigins", "https://a.example,https://b.example")

	c, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "redis:6380", c.Redis.Addr)
	assert.Equal(t, 5, c.Queue.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, c.Queue.BackoffBase)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.Admin.CORSOrigins)
}

func TestParse_RejectsZeroAttempts(t *testing.T) {
	t.Setenv("Queue_MaxAttempts", "0")

	_, err := Parse()
	assert.Error(t, err)
}

func TestLine_Location(t *testing.T) {
	c, err := Parse()
	require.NoError(t, err)
	loc, err := c.Line.Location()
	require.NoError(t, err)
	assert.Nil(t, loc)

	t.Setenv("Line_Timezone", "Asia/Bangkok")
	c, err = Parse()
	require.NoError(t, err)
	loc, err = c.Line.Location()
	require.NoError(t, err)
	require.NotNil(t, loc)
	_, offset := time.Date(2026, 3, 10, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 7*3600, offset)

	t.Setenv("Line_Timezone", "Mars/Olympus_Mons")
	_, err = Parse()
	assert.ErrorContains(t, err, "Line_Timezone")
}
