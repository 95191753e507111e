package common

import "context"

type ctxKey string

const memberKey ctxKey = "auth/member"

// Actor identifies the authenticated team member scoped to an organization.
// Every organization-scoped query derives its tenant filter from this.
type Actor struct {
	MemberID       string
	OrganizationID string
	Role           string
}

// WithActor stores the resolved team member on the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, memberKey, actor)
}

// ActorFrom extracts the resolved team member from the context. The zero
// Actor is returned for unauthenticated requests.
func ActorFrom(ctx context.Context) Actor {
	if actor, ok := ctx.Value(memberKey).(Actor); ok {
		return actor
	}
	return Actor{}
}
