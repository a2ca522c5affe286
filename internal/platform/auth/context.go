package auth

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	UserIDKey          contextKey = "user_id"
	UserRolesKey       contextKey = "user_roles"
	PortalAccountIDKey contextKey = "portal_account_id"
	PortalClientIDKey  contextKey = "portal_client_id"
)

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}

// PortalAccountIDFromContext returns the authenticated portal account ID, or
// uuid.Nil for staff requests.
func PortalAccountIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(PortalAccountIDKey).(uuid.UUID)
	return id
}

// PortalClientIDFromContext returns the client the portal account belongs to.
// Portal handlers scope every query by this ID.
func PortalClientIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(PortalClientIDKey).(uuid.UUID)
	return id
}
