// Package store provides persistent session storage for the gateway using SQLite.
//
// # Architecture
//
// SQLiteStore backs the "database" session strategy. It implements
// session.Source, so the credential bridge treats it exactly like the JWT
// codec: a token goes in, a session (or nothing) comes out.
//
// # Data Models
//
//   - users: identity records (id, email, name, image)
//   - sessions: opaque session ids bound to a user, with an optional
//     upstream access token and an expiry
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Database file locations:
//
//   - Development: ~/.local/share/courier/sessions.db
//   - Testing: a file under t.TempDir()
//
// # Error Handling
//
// Unknown and expired sessions are not errors: Lookup returns (nil, nil) for
// them. Database failures are returned wrapped and surface as resolver faults.
// GetSession returns ErrSessionNotFound for callers that need the distinction.
package store
