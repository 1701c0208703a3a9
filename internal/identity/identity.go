// Package identity resolves caller credentials into a role and subject
// id. The booking core consumes the resolved Identity value and never
// parses credentials itself.
package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleDoctor || r == RolePatient
}

type Identity struct {
	Role      Role
	SubjectID uuid.UUID
}

var ErrInvalidToken = errors.New("invalid or expired token")

// Resolver turns a caller credential into a validated identity.
type Resolver interface {
	Resolve(token string) (Identity, error)
}

type contextKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity the auth middleware injected.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}
