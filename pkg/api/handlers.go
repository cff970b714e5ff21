package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/roster/pkg/auth"
	"github.com/platinummonkey/roster/pkg/contextkeys"
	"github.com/platinummonkey/roster/pkg/httputil"
	"github.com/platinummonkey/roster/pkg/middleware"
)

// me handles GET /auth/me
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())

	member, _ := p.AsMember(s.config.BotEmailDomain)
	role, _ := p.Role()

	resp := PrincipalResponse{
		Kind:   p.Kind().String(),
		Role:   role,
		Member: member,
	}
	if bot, ok := p.Bot(); ok {
		resp.APIKeyID = &bot.APIKeyID
	}

	_ = httputil.WriteSuccess(w, resp)
}

// createBot handles POST /admin/bots
func (s *Server) createBot(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())

	var req CreateBotRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}
	if len(req.Name) > MaxBotNameLength {
		httputil.WriteBadRequest(w, "name is too long")
		return
	}

	createdBy, _ := p.MemberID()
	rawKey, key, err := s.deps.APIKeys.CreateAPIKey(r.Context(), req.Name, createdBy)
	if err != nil {
		s.requestLogger(r).WithError(err).Error("failed to create api key")
		s.audit.LogFromRequest(r, p, auth.ActionBotCreate, "", auth.StatusFailure, err)
		httputil.WriteInternalError(w)
		return
	}

	s.deps.Metrics.RecordAPIKeyIssued()
	s.audit.LogFromRequest(r, p, auth.ActionBotCreate, strconv.FormatInt(key.ID, 10), auth.StatusSuccess, nil)

	_ = httputil.WriteCreated(w, CreateBotResponse{
		APIKey: rawKey,
		Bot:    *key,
	})
}

// listBots handles GET /admin/bots
func (s *Server) listBots(w http.ResponseWriter, r *http.Request) {
	keys, err := s.deps.APIKeys.ListAPIKeys(r.Context())
	if err != nil {
		s.requestLogger(r).WithError(err).Error("failed to list api keys")
		httputil.WriteInternalError(w)
		return
	}
	if keys == nil {
		keys = []auth.APIKey{}
	}
	_ = httputil.WriteSuccess(w, ListBotsResponse{Bots: keys, Count: len(keys)})
}

// deleteBot handles DELETE /admin/bots/{id}
func (s *Server) deleteBot(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())

	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	resourceID := strconv.FormatInt(id, 10)
	if err := s.deps.APIKeys.DeleteAPIKey(r.Context(), id); err != nil {
		s.requestLogger(r).WithError(err).WithField("api_key_id", id).Error("failed to delete api key")
		s.audit.LogFromRequest(r, p, auth.ActionBotDelete, resourceID, auth.StatusFailure, err)
		httputil.WriteInternalError(w)
		return
	}

	s.audit.LogFromRequest(r, p, auth.ActionBotDelete, resourceID, auth.StatusSuccess, nil)
	httputil.WriteNoContent(w)
}

func (s *Server) requestLogger(r *http.Request) logrus.FieldLogger {
	return contextkeys.GetLogger(r.Context(), s.logger)
}
