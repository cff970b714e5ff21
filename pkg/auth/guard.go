package auth

// Guard is a pre-operation authorization requirement. The set is closed:
// GuardAuthenticated, GuardAdmin and GuardAdminOrBot.
type Guard int

const (
	GuardAuthenticated Guard = iota + 1
	GuardAdmin
	GuardAdminOrBot
)

// String returns the guard name used in logs and metrics
func (g Guard) String() string {
	switch g {
	case GuardAuthenticated:
		return "authenticated"
	case GuardAdmin:
		return "admin"
	case GuardAdminOrBot:
		return "admin_or_bot"
	default:
		return "unknown"
	}
}

// Check returns nil when p satisfies the guard and an *AuthorizationError
// otherwise. It has no side effects.
func (g Guard) Check(p Principal) error {
	if g.allows(p) {
		return nil
	}
	return &AuthorizationError{Guard: g, Authenticated: p.IsAuthenticated()}
}

func (g Guard) allows(p Principal) bool {
	switch g {
	case GuardAuthenticated:
		return p.IsAuthenticated()
	case GuardAdmin:
		return p.HasRole(RoleAdmin)
	case GuardAdminOrBot:
		return p.HasRole(RoleAdmin) || p.HasRole(RoleBot)
	default:
		// Unknown guards deny
		return false
	}
}

func (g Guard) denialMessage() string {
	switch g {
	case GuardAuthenticated:
		return "authentication required to access this resource"
	case GuardAdmin:
		return "admin privileges required for this operation"
	case GuardAdminOrBot:
		return "admin or bot privileges required for this operation"
	default:
		return "access denied"
	}
}
