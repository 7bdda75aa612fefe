package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saksham1508/CyberSentinelAI/internal/model"
)

func TestBufferCollectDrains(t *testing.T) {
	b := NewBuffer(10)

	b.Add([]model.Threat{
		{Description: "one"},
		{Description: "two"},
	})

	collected, err := b.Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, collected, 2)

	again, err := b.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, again, "collect drains the buffer")
}

func TestBufferOverflowDropsOldest(t *testing.T) {
	b := NewBuffer(3)

	b.Add([]model.Threat{
		{Description: "a"}, {Description: "b"}, {Description: "c"},
		{Description: "d"}, {Description: "e"},
	})

	collected, err := b.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, collected, 3)
	assert.Equal(t, "c", collected[0].Description)
	assert.Equal(t, "e", collected[2].Description)
	assert.Equal(t, int64(2), b.Dropped())
}

func TestBufferDefaultCapacity(t *testing.T) {
	b := NewBuffer(0)
	assert.Equal(t, 10000, b.capacity)
}
