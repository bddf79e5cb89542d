// Package auth is the credential bridge between provider sessions and the
// downstream agent service.
//
// # Credentials
//
// A Credential is the upstream access token carried by a session, or the zero
// value when the caller is anonymous. BuildHeaders projects a Credential onto
// the outbound header set:
//
//	Content-Type: application/json        (always)
//	Authorization: Bearer <credential>    (only when present)
//
// BuildHeaders is the only place headers are built, so both execution
// contexts produce identical headers for the same session.
//
// # Execution Contexts
//
// NewResolver returns a Resolver for an explicit ExecContext:
//
//   - ExecClient: asks the gateway's session endpoint using the cookie held in
//     Scope.Client (a session.ClientState).
//   - ExecServer: reads the session attached to Scope.Request, either from
//     SessionMiddleware's context value or straight from the request cookie.
//
// A missing, invalid or expired session resolves to an absent credential with
// a nil error. Faults reading the session (unreachable store, malformed
// provider data) are returned wrapped in ErrResolve.
//
// # HTTP Middleware
//
//	SessionMiddleware(source, cookieName, logger) // attaches AuthContext, never rejects
//	RequireSession()                              // 401 for anonymous callers
package auth
