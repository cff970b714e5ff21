package auth

import (
	"fmt"
	"time"
)

// DefaultBotEmailDomain is used for the synthetic email of bot principals
const DefaultBotEmailDomain = "internal.amfoss.in"

// PrincipalKind tags which identity a Principal carries
type PrincipalKind int

const (
	PrincipalAnonymous PrincipalKind = iota
	PrincipalHuman
	PrincipalBot
)

func (k PrincipalKind) String() string {
	switch k {
	case PrincipalHuman:
		return "human"
	case PrincipalBot:
		return "bot"
	default:
		return "anonymous"
	}
}

// BotIdentity describes the API key a bot principal authenticated with
type BotIdentity struct {
	APIKeyID  int64
	Name      string
	CreatedAt time.Time
}

// Principal is the identity resolved for a single request.
//
// The zero value is the anonymous principal. Fields are unexported so a
// Principal cannot be modified once built; it is passed by value.
type Principal struct {
	kind   PrincipalKind
	member Member
	bot    BotIdentity
}

// Anonymous returns the principal used when no credential matched
func Anonymous() Principal {
	return Principal{}
}

// HumanPrincipal wraps a member loaded from the directory
func HumanPrincipal(m Member) Principal {
	return Principal{kind: PrincipalHuman, member: m}
}

// BotPrincipal wraps the API key a bot authenticated with
func BotPrincipal(b BotIdentity) Principal {
	return Principal{kind: PrincipalBot, bot: b}
}

// Kind returns the principal variant
func (p Principal) Kind() PrincipalKind {
	return p.kind
}

// IsAuthenticated is false only for the anonymous principal
func (p Principal) IsAuthenticated() bool {
	return p.kind != PrincipalAnonymous
}

// Role returns the principal's role; ok is false for anonymous principals
func (p Principal) Role() (Role, bool) {
	switch p.kind {
	case PrincipalHuman:
		return p.member.Role, true
	case PrincipalBot:
		return RoleBot, true
	default:
		return "", false
	}
}

// HasRole reports whether the principal holds exactly the given role
func (p Principal) HasRole(role Role) bool {
	r, ok := p.Role()
	return ok && r == role
}

// Member returns the directory member behind a human principal
func (p Principal) Member() (Member, bool) {
	if p.kind != PrincipalHuman {
		return Member{}, false
	}
	return p.member, true
}

// Bot returns the API key identity behind a bot principal
func (p Principal) Bot() (BotIdentity, bool) {
	if p.kind != PrincipalBot {
		return BotIdentity{}, false
	}
	return p.bot, true
}

// MemberID returns the id the rest of the system sees for this principal.
// Bots report the negated API key id so they never collide with a directory row.
func (p Principal) MemberID() (int64, bool) {
	switch p.kind {
	case PrincipalHuman:
		return p.member.ID, true
	case PrincipalBot:
		return -p.bot.APIKeyID, true
	default:
		return 0, false
	}
}

// AsMember returns the member view of the principal. For bots this is a
// synthetic, never persisted record using emailDomain for its address.
func (p Principal) AsMember(emailDomain string) (Member, bool) {
	switch p.kind {
	case PrincipalHuman:
		return p.member, true
	case PrincipalBot:
		if emailDomain == "" {
			emailDomain = DefaultBotEmailDomain
		}
		return Member{
			ID:        -p.bot.APIKeyID,
			Name:      p.bot.Name,
			Email:     fmt.Sprintf("bot-%d@%s", p.bot.APIKeyID, emailDomain),
			Role:      RoleBot,
			CreatedAt: p.bot.CreatedAt,
			UpdatedAt: p.bot.CreatedAt,
		}, true
	default:
		return Member{}, false
	}
}

// String is safe for logs: it never includes credentials
func (p Principal) String() string {
	switch p.kind {
	case PrincipalHuman:
		return fmt.Sprintf("member:%d", p.member.ID)
	case PrincipalBot:
		return fmt.Sprintf("bot:%d", p.bot.APIKeyID)
	default:
		return "anonymous"
	}
}
