// Package members is the club member directory as seen by the auth core.
//
// It only covers what login needs: looking a member up by id or GitHub
// username and provisioning a new Member-role record on first login.
package members
