// Package conversation holds the client-side state of a chat session.
//
// # Log
//
// Log is the append-only, ordered list of turns shown to the user. Turns are
// never edited or removed once appended:
//
//	log := conversation.NewLog()
//	log.Append(conversation.NewTurn(chat.RoleUser, "hello"))
//	turns := log.Turns() // snapshot copy
//
// # Notifier
//
// Notifier is an in-memory fan-out of transient user notices such as rate
// limit guidance or delivery failures. Publish never blocks: a subscriber
// whose buffer is full misses the notice.
//
//	ch, _ := notifier.Subscribe(ctx)
//	for n := range ch {
//		fmt.Println(n.Text)
//	}
//
// Subscriptions end when their context is cancelled or the notifier is closed.
package conversation
