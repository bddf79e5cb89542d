// ABOUTME: Conversation turn and request types for the chat contract
// ABOUTME: Validates inbound turn sequences before anything is forwarded

package chat

import (
	"errors"
	"fmt"
	"strings"
)

// Role attributes a turn to one side of the conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one message in a conversation.
type Turn struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is the inbound body of POST /api/chat.
type Request struct {
	Turns []Turn `json:"turns"`
}

// Validation errors. Their text is surfaced to callers verbatim.
var (
	ErrNoTurns          = errors.New("no messages provided or invalid format")
	ErrEmptyLastContent = errors.New("last message has no content")
	ErrUnknownRole      = errors.New("message has an unknown role")
)

// Validate checks that the request has at least one turn, that every turn
// has a known role and that the last turn carries non-blank content.
func (r *Request) Validate() error {
	if r == nil || len(r.Turns) == 0 {
		return ErrNoTurns
	}
	for _, t := range r.Turns {
		if !t.Role.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownRole, t.Role)
		}
	}
	if strings.TrimSpace(r.Turns[len(r.Turns)-1].Content) == "" {
		return ErrEmptyLastContent
	}
	return nil
}

// Latest returns the content of the last turn. Callers must Validate first.
func (r *Request) Latest() string {
	return r.Turns[len(r.Turns)-1].Content
}
