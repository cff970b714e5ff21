package auth

import "time"

// Role is the closed set of member roles
type Role string

const (
	RoleAdmin  Role = "Admin"  // Club administrators
	RoleMember Role = "Member" // Default role for self-service operations
	RoleBot    Role = "Bot"    // Automated callers authenticated by API key
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMember, RoleBot:
		return true
	}
	return false
}

// Member is a person in the club directory or a synthetic bot identity
type Member struct {
	ID         int64     `json:"member_id"`
	RollNo     *string   `json:"roll_no,omitempty"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Year       *int32    `json:"year,omitempty"`
	Hostel     *string   `json:"hostel,omitempty"`
	DiscordID  *string   `json:"discord_id,omitempty"`
	Track      *string   `json:"track,omitempty"`
	GitHubUser *string   `json:"github_user,omitempty"`
	Role       Role      `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Session links a member to a bearer token. Only the digest of the token is kept.
type Session struct {
	ID        int64     `json:"session_id"`
	MemberID  int64     `json:"member_id"`
	TokenHash string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsValidAt reports whether the session has not yet expired at t
func (s *Session) IsValidAt(t time.Time) bool {
	return s.ExpiresAt.After(t)
}

// APIKey is a long-lived bot credential
type APIKey struct {
	ID         int64      `json:"api_key_id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"` // bcrypt hash, the raw key is never stored
	CreatedBy  *int64     `json:"created_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// ExternalIdentity is the verified GitHub identity produced by a completed OAuth flow.
// It is never persisted.
type ExternalIdentity struct {
	ExternalID int64  `json:"github_id"`
	Username   string `json:"github_username"`
	Name       string `json:"name"`
	Email      string `json:"email"`
}
