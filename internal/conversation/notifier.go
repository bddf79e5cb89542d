// ABOUTME: In-memory fan-out of transient user notifications
// ABOUTME: Non-blocking publish to every subscriber, cleaned up on context cancel

package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64
)

// Level is the severity of a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notification is a transient notice for the user. It is never part of the log.
type Notification struct {
	ID    string
	Level Level
	Text  string
	Time  time.Time
}

// subscription pairs a subscriber's channel with the signal that retires its
// context watcher.
type subscription struct {
	ch   chan Notification
	stop chan struct{}
}

// Notifier provides in-memory pub/sub for notifications.
type Notifier struct {
	mu          sync.RWMutex
	subscribers map[string]subscription // subID -> sub
	closed      bool
	watchers    sync.WaitGroup
	logger      *slog.Logger
}

// NewNotifier creates a notifier. Pass nil logger for default.
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		subscribers: make(map[string]subscription),
		logger:      logger.With("component", "notifier"),
	}
}

// Subscribe registers a subscriber. Returns a channel that receives
// notifications and a subscription ID for later unsubscription. The
// subscription is automatically cleaned up when ctx is cancelled; its watcher
// also exits on Unsubscribe or Close. Subscribing to a closed notifier returns
// an already-closed channel.
func (n *Notifier) Subscribe(ctx context.Context) (<-chan Notification, string) {
	subID := uuid.New().String()
	ch := make(chan Notification, subscriberBufferSize)

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		close(ch)
		return ch, subID
	}
	stop := make(chan struct{})
	n.subscribers[subID] = subscription{ch: ch, stop: stop}
	n.watchers.Add(1)
	n.mu.Unlock()

	n.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		defer n.watchers.Done()
		select {
		case <-ctx.Done():
			n.Unsubscribe(subID)
		case <-stop:
		}
	}()

	return ch, subID
}

// Publish sends a notification to all subscribers. ID and Time are filled in
// when unset. Non-blocking: notifications are dropped for subscribers whose
// channels are full.
func (n *Notifier) Publish(note Notification) {
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	if note.Time.IsZero() {
		note.Time = time.Now()
	}

	// Sends are non-blocking, so holding the read lock keeps Unsubscribe
	// from closing a channel mid-send.
	n.mu.RLock()
	defer n.mu.RUnlock()

	for id, sub := range n.subscribers {
		select {
		case sub.ch <- note:
		default:
			n.logger.Debug("dropped notification for slow subscriber",
				"sub_id", id,
				"notification_id", note.ID)
		}
	}
}

// Notify publishes a notification with the given level and text.
func (n *Notifier) Notify(level Level, text string) {
	n.Publish(Notification{Level: level, Text: text})
}

// Unsubscribe removes a subscription and closes its channel.
func (n *Notifier) Unsubscribe(subID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	sub, exists := n.subscribers[subID]
	if !exists {
		return
	}
	delete(n.subscribers, subID)
	close(sub.ch)
	close(sub.stop)

	n.logger.Debug("subscriber removed", "sub_id", subID)
}

// Close shuts down the notifier and closes all subscriber channels.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	n.closed = true
	for subID, sub := range n.subscribers {
		close(sub.ch)
		close(sub.stop)
		delete(n.subscribers, subID)
	}

	n.logger.Debug("notifier closed")
}
