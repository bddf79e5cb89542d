// Package chat defines the wire contract shared by the gateway and its clients.
//
// # Turns
//
// A conversation is an ordered sequence of turns, each attributed to the user
// or the assistant:
//
//	{"id": "1", "role": "user", "content": "Where is my order #25?"}
//
// A Request carries the whole sequence; only the last turn's content is
// forwarded downstream because the agent service owns conversation state.
//
// # Responses
//
// Every gateway invocation produces exactly one Response, one of:
//
//   - Ok: the assistant's reply text.
//   - RateLimited: the downstream refused the call for quota reasons. Carries
//     guidance that differs for anonymous and authenticated callers.
//   - Failed: a terminal failure with an ErrorKind (invalid_input,
//     downstream_error, transport_error) and a human-readable message.
//
// None of these are retried by the gateway. Responses map onto HTTP as:
//
//	Ok          200 {"content": "..."}
//	Failed      500 {"error": "Service error: ..."}
//	RateLimited 429 {"error": "RATE_LIMIT_EXCEEDED", "message": "..."}
package chat
