package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// AuditEvent is a single security-relevant occurrence
type AuditEvent struct {
	Action       string
	Principal    Principal
	ResourceID   string
	IPAddress    string
	UserAgent    string
	Status       string
	ErrorMessage string
	CreatedAt    time.Time
}

// AuditLogger writes audit events to a structured log stream
type AuditLogger struct {
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger logrus.FieldLogger) *AuditLogger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuditLogger{
		logger: logger.WithField("component", "audit"),
		now:    time.Now,
	}
}

// LogAction records an audit event
func (al *AuditLogger) LogAction(ctx context.Context, event *AuditEvent) error {
	if event.Action == "" {
		return fmt.Errorf("action is required")
	}
	if event.Status == "" {
		return fmt.Errorf("status is required")
	}
	_ = ctx

	event.CreatedAt = al.now()

	fields := logrus.Fields{
		"action":    event.Action,
		"principal": event.Principal.String(),
		"status":    event.Status,
		"at":        event.CreatedAt.UTC().Format(time.RFC3339),
	}
	if event.ResourceID != "" {
		fields["resource_id"] = event.ResourceID
	}
	if event.IPAddress != "" {
		fields["ip"] = event.IPAddress
	}
	if event.UserAgent != "" {
		fields["user_agent"] = event.UserAgent
	}

	entry := al.logger.WithFields(fields)
	if event.ErrorMessage != "" {
		entry.WithField("error", event.ErrorMessage).Warn("audit event")
		return nil
	}
	entry.Info("audit event")
	return nil
}

// LogFromRequest creates an audit event from an HTTP request
func (al *AuditLogger) LogFromRequest(r *http.Request, p Principal, action, resourceID, status string, err error) {
	event := &AuditEvent{
		Action:     action,
		Principal:  p,
		ResourceID: resourceID,
		IPAddress:  ClientIP(r),
		UserAgent:  r.UserAgent(),
		Status:     status,
	}
	if err != nil {
		event.ErrorMessage = err.Error()
	}

	if logErr := al.LogAction(r.Context(), event); logErr != nil {
		al.logger.WithError(logErr).Error("failed to record audit event")
	}
}

// ClientIP returns the first forwarded address, falling back to the peer address
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	return remoteHost(r)
}

// RequestIP returns the caller's address for throttling. Forwarding headers
// are only honoured when trustProxy is set.
func RequestIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		return ClientIP(r)
	}
	return remoteHost(r)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Audit action constants
const (
	ActionLoginSuccess  = "auth.login.success"
	ActionLoginFailure  = "auth.login.failure"
	ActionLogout        = "auth.logout"
	ActionBotCreate     = "bot.create"
	ActionBotDelete     = "bot.delete"
	ActionAccessDenied  = "auth.denied"
	ActionMemberCreated = "member.create"
)

// Status constants
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDenied  = "denied"
)
