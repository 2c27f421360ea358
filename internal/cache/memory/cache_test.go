package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Text string `json:"text"`
}

func TestSetGet(t *testing.T) {
	c := New(time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", entry{Text: "namaste"}, 0))

	var got entry
	found, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "namaste", got.Text)
	assert.Equal(t, 1, c.ItemCount())
}

func TestGetMissing(t *testing.T) {
	c := New(time.Minute)

	var got entry
	found, err := c.Get(context.Background(), "nope", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEntryExpires(t *testing.T) {
	c := New(time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", entry{Text: "x"}, 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	var got entry
	found, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDelete(t *testing.T) {
	c := New(time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", entry{Text: "x"}, 0))
	c.Delete("k")

	var got entry
	found, _ := c.Get(ctx, "k", &got)
	assert.False(t, found)
}
