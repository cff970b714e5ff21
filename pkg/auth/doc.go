// Package auth holds the identity model shared by every entry point of the
// roster backend.
//
// # Principals
//
// Each request resolves to exactly one Principal:
//
//	auth.Anonymous()               // no credential matched
//	auth.HumanPrincipal(member)    // session cookie or session bearer token
//	auth.BotPrincipal(botIdentity) // API key
//
// A bot reports the negated API key id from MemberID, so it can never be
// mistaken for a directory row.
//
// # Secrets
//
// Session tokens are hashed with Digest (SHA-256, hex) and looked up by
// equality. API keys are hashed with SaltedHash (bcrypt, cost 12) and must be
// verified against each stored hash with VerifySaltedHash.
//
//	token, _ := auth.GenerateSecret(64)
//	hash := auth.Digest(token)
//
// # Guards
//
// Guards are checked before a protected operation runs:
//
//	if err := auth.GuardAdmin.Check(principal); err != nil {
//		// err is an *auth.AuthorizationError with a caller-safe message
//	}
//
// # Audit
//
// AuditLogger writes login, logout, bot key and denial events as structured
// log entries.
package auth
