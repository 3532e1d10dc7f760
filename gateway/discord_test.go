package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueue_WaitsForRoomInsteadOfDropping(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := make(chan Event, 1)
	require.True(t, enqueue(ctx, queue, Event{Kind: KindMessage, Shard: 0}))

	accepted := make(chan bool)
	go func() { accepted <- enqueue(ctx, queue, Event{Kind: KindMemberJoin}) }()

	select {
	case <-accepted:
		t.Fatal("enqueue returned while the queue was full")
	case <-time.After(20 * time.Millisecond):
	}

	assert.Equal(t, KindMessage, (<-queue).Kind)
	assert.True(t, <-accepted)
	assert.Equal(t, KindMemberJoin, (<-queue).Kind)
}

func TestEnqueue_GivesUpWhenStopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	queue := make(chan Event)

	done := make(chan bool)
	go func() { done <- enqueue(ctx, queue, Event{Kind: KindMessage}) }()
	cancel()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("enqueue did not return after cancel")
	}
}
