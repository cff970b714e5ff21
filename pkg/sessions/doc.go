// Package sessions issues and validates browser login sessions.
//
// A session token is 64 random alphanumerics handed to the client once.
// Only its SHA-256 digest is stored, so validation is a single indexed
// lookup joined to the member directory. Sessions last 30 days and are
// removed by CleanupExpiredSessions.
package sessions
