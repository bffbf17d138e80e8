package engine

import (
	"context"

	"dfp-neo/backend/internal/policy/domain"
	userdomain "dfp-neo/backend/internal/user/domain"
)

// Authorizer decides whether a role holds a capability.
type Authorizer interface {
	Allowed(ctx context.Context, role userdomain.Role, capability domain.Capability) (bool, error)
}
