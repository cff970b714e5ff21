package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testMember(id int64, role Role) Member {
	gh := "octocat"
	return Member{
		ID:         id,
		Name:       "Mona",
		Email:      "mona@example.com",
		GitHubUser: &gh,
		Role:       role,
	}
}

func TestAnonymousPrincipal(t *testing.T) {
	p := Anonymous()

	assert.Equal(t, PrincipalAnonymous, p.Kind())
	assert.False(t, p.IsAuthenticated())

	_, ok := p.Role()
	assert.False(t, ok)
	_, ok = p.MemberID()
	assert.False(t, ok)
	_, ok = p.AsMember("")
	assert.False(t, ok)
	assert.Equal(t, "anonymous", p.String())

	// The zero value is anonymous
	assert.Equal(t, p, Principal{})
}

func TestHumanPrincipal(t *testing.T) {
	m := testMember(7, RoleAdmin)
	p := HumanPrincipal(m)

	assert.Equal(t, PrincipalHuman, p.Kind())
	assert.True(t, p.IsAuthenticated())
	assert.True(t, p.HasRole(RoleAdmin))
	assert.False(t, p.HasRole(RoleMember))

	id, ok := p.MemberID()
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)

	got, ok := p.Member()
	assert.True(t, ok)
	assert.Equal(t, m, got)

	_, ok = p.Bot()
	assert.False(t, ok)
	assert.Equal(t, "member:7", p.String())
}

func TestBotPrincipal(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := BotPrincipal(BotIdentity{APIKeyID: 42, Name: "attendance-bot", CreatedAt: created})

	assert.Equal(t, PrincipalBot, p.Kind())
	assert.True(t, p.IsAuthenticated())

	role, ok := p.Role()
	assert.True(t, ok)
	assert.Equal(t, RoleBot, role)

	id, ok := p.MemberID()
	assert.True(t, ok)
	assert.Equal(t, int64(-42), id)

	_, ok = p.Member()
	assert.False(t, ok)

	m, ok := p.AsMember("")
	assert.True(t, ok)
	assert.Equal(t, int64(-42), m.ID)
	assert.Equal(t, "attendance-bot", m.Name)
	assert.Equal(t, "bot-42@internal.amfoss.in", m.Email)
	assert.Equal(t, RoleBot, m.Role)
	assert.Equal(t, created, m.CreatedAt)
	assert.Nil(t, m.GitHubUser)

	m, _ = p.AsMember("bots.example.org")
	assert.Equal(t, "bot-42@bots.example.org", m.Email)
	assert.Equal(t, "bot:42", p.String())
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleMember.Valid())
	assert.True(t, RoleBot.Valid())
	assert.False(t, Role("Owner").Valid())
	assert.False(t, Role("").Valid())
}

func TestSessionIsValidAt(t *testing.T) {
	now := time.Now()
	s := &Session{ExpiresAt: now.Add(time.Hour)}
	assert.True(t, s.IsValidAt(now))
	assert.False(t, s.IsValidAt(now.Add(time.Hour)), "expiry instant is not valid")
	assert.False(t, s.IsValidAt(now.Add(2*time.Hour)))
}
