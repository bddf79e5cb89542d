// ABOUTME: Tests for the append-only conversation log
// ABOUTME: Covers ordering, snapshot isolation and concurrent appends

package conversation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/courier-gateway/internal/chat"
)

func TestLog_AppendPreservesOrder(t *testing.T) {
	l := NewLog()
	assert.Equal(t, 0, l.Len())

	_, ok := l.Last()
	assert.False(t, ok)

	l.Append(NewTurn(chat.RoleUser, "one"))
	l.Append(NewTurn(chat.RoleAssistant, "two"))
	l.Append(NewTurn(chat.RoleUser, "three"))

	turns := l.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, "one", turns[0].Content)
	assert.Equal(t, chat.RoleAssistant, turns[1].Role)
	assert.Equal(t, "three", turns[2].Content)

	last, ok := l.Last()
	require.True(t, ok)
	assert.Equal(t, "three", last.Content)
}

func TestLog_TurnsIsSnapshot(t *testing.T) {
	l := NewLog()
	l.Append(NewTurn(chat.RoleUser, "original"))

	snapshot := l.Turns()
	snapshot[0].Content = "mutated"
	l.Append(NewTurn(chat.RoleAssistant, "reply"))

	assert.Len(t, snapshot, 1)
	assert.Equal(t, "original", l.Turns()[0].Content)
}

func TestNewTurn_UniqueIDs(t *testing.T) {
	a := NewTurn(chat.RoleUser, "x")
	b := NewTurn(chat.RoleUser, "x")
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestLog_ConcurrentAppend(t *testing.T) {
	l := NewLog()

	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			for range 10 {
				l.Append(NewTurn(chat.RoleUser, "hi"))
				_ = l.Turns()
			}
		})
	}
	wg.Wait()

	assert.Equal(t, 200, l.Len())
}
