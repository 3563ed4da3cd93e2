package sse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-guestlist/internal/models"
)

func TestEmitReachesOwnAccountOnly(t *testing.T) {
	emitter := NewGuestEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chanA := emitter.Subscribe(ctx, "acct-a")
	chanB := emitter.Subscribe(ctx, "acct-b")

	emitter.EmitGuestChange(models.GuestChange{
		AccountID: "acct-a",
		GuestID:   "guest-1",
		Action:    models.ActionCheckedIn,
	})

	select {
	case change := <-chanA:
		assert.Equal(t, "guest-1", change.GuestID)
		assert.Equal(t, models.ActionCheckedIn, change.Action)
	case <-time.After(time.Second):
		t.Fatal("subscriber of the owning account did not receive the change")
	}

	select {
	case change := <-chanB:
		t.Fatalf("subscriber of another account received %v", change)
	default:
	}
}

func TestEmitFansOutToAllAccountClients(t *testing.T) {
	emitter := NewGuestEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := emitter.Subscribe(ctx, "acct-a")
	second := emitter.Subscribe(ctx, "acct-a")
	require.Equal(t, 2, emitter.ClientCount("acct-a"))

	emitter.EmitGuestChange(models.GuestChange{AccountID: "acct-a", Action: models.ActionRegistered})

	for _, ch := range []chan models.GuestChange{first, second} {
		select {
		case change := <-ch:
			assert.Equal(t, models.ActionRegistered, change.Action)
		case <-time.After(time.Second):
			t.Fatal("a subscriber missed the broadcast")
		}
	}
}

func TestSubscriberRemovedOnContextDone(t *testing.T) {
	emitter := NewGuestEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())

	ch := emitter.Subscribe(ctx, "acct-a")
	require.Equal(t, 1, emitter.ClientCount("acct-a"))

	cancel()

	deadline := time.After(time.Second)
	for emitter.ClientCount("acct-a") != 0 {
		select {
		case <-deadline:
			t.Fatal("subscriber was not removed after context cancellation")
		case <-time.After(5 * time.Millisecond):
		}
	}

	_, open := <-ch
	assert.False(t, open, "channel must be closed on removal")
}

func TestEmitSafeDuringSubscriberChurn(t *testing.T) {
	emitter := NewGuestEventEmitter()

	// Subscribers come and go while changes are broadcast; an emit to a
	// channel closed by the removal path would panic here.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			emitter.EmitGuestChange(models.GuestChange{AccountID: "acct-a", Action: models.ActionCheckedIn})
		}
	}()

	for i := 0; i < 100; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		emitter.Subscribe(ctx, "acct-a")
		cancel()
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("broadcast loop did not finish")
	}
}

func TestSlowClientDoesNotBlockEmit(t *testing.T) {
	emitter := NewGuestEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	emitter.Subscribe(ctx, "acct-a")

	// Flood past the buffer; without the non-blocking send this would hang.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			emitter.EmitGuestChange(models.GuestChange{AccountID: "acct-a"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emit blocked on a slow subscriber")
	}
}
