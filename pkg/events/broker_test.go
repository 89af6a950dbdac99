package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerSubscribeBroadcast(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe(ProjectChannel("p1"))
	defer cancel()

	b.Broadcast(ProjectChannel("p1"), Event{Seq: 1, Kind: KindStepStarted})
	b.Broadcast(ProjectChannel("p2"), Event{Seq: 1, Kind: KindStepStarted})

	ev := <-ch
	assert.Equal(t, int64(1), ev.Seq)
	assert.Equal(t, KindStepStarted, ev.Kind)

	select {
	case unexpected := <-ch:
		t.Fatalf("received event from foreign channel: %+v", unexpected)
	default:
	}
}

func TestBrokerCancelRemovesSubscriber(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe(ProjectChannel("p1"))
	require.Equal(t, 1, b.SubscriberCount(ProjectChannel("p1")))

	cancel()
	cancel() // idempotent

	assert.Equal(t, 0, b.SubscriberCount(ProjectChannel("p1")))

	_, open := <-ch
	assert.False(t, open, "stream must be closed after cancel")
}

func TestBrokerDropsWhenSubscriberFull(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe(ProjectChannel("p1"))
	defer cancel()

	// Fill the buffer and then some; the publisher must never block.
	for i := 0; i < subscriberBuffer+10; i++ {
		b.Broadcast(ProjectChannel("p1"), Event{Seq: int64(i + 1)})
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}
	assert.Equal(t, subscriberBuffer, received)
}
