package api

import "github.com/platinummonkey/roster/pkg/auth"

// MaxBotNameLength bounds the display name of an API key
const MaxBotNameLength = 100

// PrincipalResponse describes the caller of GET /auth/me. Bots are reported
// through their synthetic member record.
type PrincipalResponse struct {
	Kind     string      `json:"kind"`
	Role     auth.Role   `json:"role"`
	Member   auth.Member `json:"member"`
	APIKeyID *int64      `json:"api_key_id,omitempty"`
}

// CreateBotRequest is the body of POST /admin/bots
type CreateBotRequest struct {
	Name string `json:"name"`
}

// CreateBotResponse carries the raw key. It is returned exactly once.
type CreateBotResponse struct {
	APIKey string      `json:"api_key"`
	Bot    auth.APIKey `json:"bot"`
}

// ListBotsResponse is the body of GET /admin/bots
type ListBotsResponse struct {
	Bots  []auth.APIKey `json:"bots"`
	Count int           `json:"count"`
}
