package middleware

import (
	"context"

	"github.com/angelmondragon/commerce-engine/pkg/enums"
)

// Actor is the authenticated caller of a request.
type Actor struct {
	UserID string
	Role   enums.UserRole
}

type actorKey struct{}

func WithActor(ctx context.Context, userID string, role enums.UserRole) context.Context {
	return context.WithValue(ctx, actorKey{}, Actor{UserID: userID, Role: role})
}

// ActorFromContext reports whether Auth ran for this request.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

func UserIDFromContext(ctx context.Context) string {
	actor, _ := ActorFromContext(ctx)
	return actor.UserID
}

func RoleFromContext(ctx context.Context) enums.UserRole {
	actor, _ := ActorFromContext(ctx)
	return actor.Role
}
