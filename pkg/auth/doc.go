// Package auth issues session tokens and checks API keys.
//
// Sessions created without an explicit session_token receive an HS256 JWT
// whose subject is the session's user id and whose expiry matches the
// session's expires_at. API keys are compared in constant time.
package auth
