// Package sso implements login through GitHub OAuth, restricted to members
// of one GitHub organization.
//
// The flow:
//
//  1. GET /auth/github stores a random state server side and in a short
//     lived cookie, then redirects to GitHub.
//  2. GET /auth/github/callback checks the state against both, exchanges the
//     code, loads the profile and verified primary email, and checks org
//     membership. Members get a session cookie and a redirect to the frontend.
//  3. POST /auth/logout deletes the caller's session.
//
// Org membership answers are three-valued. 204 means member, 404 means not a
// member (*auth.OrgMembershipDeniedError, HTTP 403), anything else is an
// *auth.ExternalServiceError (HTTP 401).
//
// Pending states live in Redis when configured (RedisStateStore) or in an
// in-process expiring LRU (MemoryStateStore).
package sso
