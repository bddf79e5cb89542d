// Package client is the chat client's transport to the gateway.
//
// # Overview
//
// Transport owns a conversation log and a notifier. Send appends the user's
// turn optimistically, forwards the whole log to POST /api/chat, and then
// records the outcome:
//
//   - Ok: the assistant reply is appended to the log
//   - RateLimited: nothing is appended; a warning notification is published
//   - Failed: an "Error: ..." assistant turn is appended and an error
//     notification is published
//
// Empty input is rejected before anything is appended or sent.
//
// # Credentials
//
// The bearer credential comes from the client-context resolver, which reads
// the session through the gateway's session endpoint using the cookie held
// in session.ClientState. The cookie is also forwarded with the chat request
// so the gateway resolves the same session on its side.
//
// # Concurrency
//
// Send is safe to call from multiple goroutines, but overlapping calls on one
// Transport append turns in completion order. Callers that need strict
// request/reply ordering must wait for each Send to return.
package client
