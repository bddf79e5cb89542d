// ABOUTME: Append-only conversation log shared by the chat client and its UI
// ABOUTME: Guards turns with a mutex and hands out snapshot copies

package conversation

import (
	"sync"

	"github.com/google/uuid"

	"github.com/2389/courier-gateway/internal/chat"
)

// NewTurn creates a turn with a fresh ID.
func NewTurn(role chat.Role, content string) chat.Turn {
	return chat.Turn{
		ID:      uuid.New().String(),
		Role:    role,
		Content: content,
	}
}

// Log is an ordered, append-only list of turns. The mutex protects memory
// only; callers that need ordered sends must serialize them.
type Log struct {
	mu    sync.RWMutex
	turns []chat.Turn
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append adds a turn to the end of the log.
func (l *Log) Append(turn chat.Turn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = append(l.turns, turn)
}

// Turns returns a copy of every turn in order.
func (l *Log) Turns() []chat.Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]chat.Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Len returns the number of turns.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// Last returns the most recent turn.
func (l *Log) Last() (chat.Turn, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.turns) == 0 {
		return chat.Turn{}, false
	}
	return l.turns[len(l.turns)-1], true
}
