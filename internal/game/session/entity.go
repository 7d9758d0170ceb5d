// Package session tracks online players, the message bridge each one reads
// from, and the per-session resource pools the ability gate charges.
package session

import (
	"fmt"
	"sync"
)

// BridgeEntity routes messages for one player to a buffered channel that the
// transport layer drains.
type BridgeEntity struct {
	playerID int64
	events   chan string
	mu       sync.Mutex
	closed   bool
}

// NewBridgeEntity creates a BridgeEntity for playerID.
//
// Postcondition: Returns a BridgeEntity with an open events channel.
func NewBridgeEntity(playerID int64, bufferSize int) *BridgeEntity {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &BridgeEntity{playerID: playerID, events: make(chan string, bufferSize)}
}

// PlayerID returns the owning player's ID.
func (e *BridgeEntity) PlayerID() int64 {
	return e.playerID
}

// Push enqueues msg without blocking.
//
// Postcondition: msg is enqueued, or an error is returned if the entity is closed or full.
func (e *BridgeEntity) Push(msg string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("entity %d is closed", e.playerID)
	}
	select {
	case e.events <- msg:
		return nil
	default:
		return fmt.Errorf("entity %d event buffer full", e.playerID)
	}
}

// Events returns the read-only events channel.
func (e *BridgeEntity) Events() <-chan string {
	return e.events
}

// Close marks the entity closed and closes the events channel.
//
// Postcondition: Further Push calls return an error.
func (e *BridgeEntity) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.closed {
		e.closed = true
		close(e.events)
	}
	return nil
}

// IsClosed reports whether the entity has been closed.
func (e *BridgeEntity) IsClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
