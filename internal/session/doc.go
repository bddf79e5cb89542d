// Package session reads provider-issued sessions.
//
// A session identifies a signed-in user and may carry an upstream access
// token. This package only reads sessions; issuing and refreshing them belongs
// to the identity provider.
//
// # Strategies
//
// Sessions are looked up through a Source keyed by the opaque token held in
// the session cookie:
//
//   - Codec: the token is an HS256 JWT whose claims hold the session ("jwt").
//   - store.SQLiteStore: the token is a row id in the sessions table ("database").
//   - Disabled: every caller is anonymous ("none").
//
// A Source returns (nil, nil) when there is no usable session. Bad signatures,
// expired tokens and unknown ids all land there. Errors are reserved for
// faults: an unreachable store or a token that verifies but carries malformed
// claims.
//
// # Contexts
//
// On the server the token comes from the inbound request cookie
// (ReadRequest). On the client the session is queried from the gateway's
// /api/auth/session endpoint with the cookie the client holds (ClientState).
package session
