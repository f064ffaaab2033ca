// internal/memory/memory.go
// Package memory keeps the bounded conversation history an engine threads into
// each prompt.
package memory

import (
	"fmt"
	"sync"
	"time"
)

// Turn is one completed question and answer exchange.
type Turn struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
	Sources   []string  `json:"sources,omitempty"`
}

// Conversation holds the most recent turns up to a fixed capacity, evicting
// the oldest turn first. All methods are safe for concurrent use.
type Conversation struct {
	mu    sync.Mutex
	size  int
	turns []Turn
}

// NewConversation creates a conversation bounded to size turns.
func NewConversation(size int) (*Conversation, error) {
	if size <= 0 {
		return nil, fmt.Errorf("memorySize must be greater than zero, got %d", size)
	}
	return &Conversation{size: size}, nil
}

// Size returns the turn capacity.
func (c *Conversation) Size() int { return c.size }

// Append records a completed turn, evicting the oldest beyond capacity.
func (c *Conversation) Append(turn Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	c.turns = append(c.turns, turn)
	if len(c.turns) > c.size {
		c.turns = c.turns[len(c.turns)-c.size:]
	}
}

// History returns the retained turns oldest first.
func (c *Conversation) History() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	history := make([]Turn, len(c.turns))
	copy(history, c.turns)
	return history
}

// Len returns the number of retained turns.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// Clear drops all retained turns. Persisted logs are unaffected.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = nil
}
