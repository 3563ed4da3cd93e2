package sse

import (
	"context"
	"sync"

	"ms-guestlist/internal/models"
)

// GuestEventEmitter manages SSE connections and broadcasts guest changes to
// subscribers of the owning account. It is the in-process half of the
// mutation-occurred hook; subscribers in other accounts never see the event.
type GuestEventEmitter struct {
	clients     map[string][]chan models.GuestChange
	clientMutex sync.RWMutex
}

func NewGuestEventEmitter() *GuestEventEmitter {
	return &GuestEventEmitter{
		clients: make(map[string][]chan models.GuestChange),
	}
}

// Subscribe adds a client to the account's guest-change stream. The client
// is removed when its context is done.
func (e *GuestEventEmitter) Subscribe(ctx context.Context, accountID string) chan models.GuestChange {
	clientChan := make(chan models.GuestChange, 10)

	e.clientMutex.Lock()
	e.clients[accountID] = append(e.clients[accountID], clientChan)
	e.clientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClient(accountID, clientChan)
	}()

	return clientChan
}

// EmitGuestChange broadcasts a change to the owning account's subscribers.
// The read lock is held across the sends: removeClient closes channels under
// the write lock, so sending outside the lock could hit a closed channel.
func (e *GuestEventEmitter) EmitGuestChange(change models.GuestChange) {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()

	for _, clientChan := range e.clients[change.AccountID] {
		// Non-blocking send so a slow client cannot stall the mutation path.
		select {
		case clientChan <- change:
		default:
		}
	}
}

func (e *GuestEventEmitter) removeClient(accountID string, clientChan chan models.GuestChange) {
	e.clientMutex.Lock()
	defer e.clientMutex.Unlock()

	clients := e.clients[accountID]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[accountID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.clients[accountID]) == 0 {
		delete(e.clients, accountID)
	}
}

// ClientCount returns the number of subscribers for an account.
func (e *GuestEventEmitter) ClientCount(accountID string) int {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()
	return len(e.clients[accountID])
}
