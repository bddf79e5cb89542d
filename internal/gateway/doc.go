// Package gateway orchestrates the courier-gateway server components.
//
// # Overview
//
// The gateway accepts chat turns from clients, resolves the caller's
// credential from their session cookie, forwards the latest turn to the
// downstream agent service in exactly one call, and maps the reply onto a
// small set of outcomes.
//
// # Gateway Struct
//
//	type Gateway struct {
//	    config      *config.Config
//	    source      session.Source      // jwt codec, SQLite store or disabled
//	    store       *store.SQLiteStore  // database strategy only
//	    handler     *Handler
//	    httpServer  *http.Server
//	    tsnetServer *tsnet.Server       // tailscale.enabled only
//	}
//
// # Handler
//
// Handler.Handle is the request path:
//
//  1. Validate: no turns, or a blank last turn, fails with invalid_input.
//  2. Resolve the server-context credential and build headers.
//  3. POST {"message": <last turn>} downstream. One call, no retries.
//  4. Classify the reply:
//
//	429                   -> rate limited, with guidance
//	other non-2xx         -> "Backend service unavailable: <status>"
//	2xx JSON object       -> first of response/message/content, else fallback text
//	2xx non-object        -> "invalid response body from backend"
//	no reply (timeout...) -> transport_error
//
// # HTTP API
//
//	POST /api/chat          {"turns":[...]} -> 200 {"content"} | 429 {"error","message"} | 500 {"error"}
//	GET  /api/auth/session  session JSON or null
//	GET  /api/auth/debug    session status and redacted outbound headers
//	GET  /api/user          the signed-in user, 401 when anonymous
//	GET  /health            liveness
//	GET  /health/ready      200 when the session source is reachable
//
// Each chat request runs under a deadline of downstream.timeout. A request
// that runs out of time is reported as a transport error.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	err = gw.Run(ctx) // blocks until ctx is cancelled, then shuts down within 5s
package gateway
