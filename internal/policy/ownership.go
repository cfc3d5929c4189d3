package policy

import (
	"context"

	"github.com/diewo77/go-expenses/gate"
)

// Ownable is implemented by resources that have a single owning user.
type Ownable interface {
	GetUserID() uint
}

// OwnershipPolicy allows an action only when the subject owns the resource.
type OwnershipPolicy struct{}

// NewOwnershipPolicy creates a new ownership policy.
func NewOwnershipPolicy() *OwnershipPolicy {
	return &OwnershipPolicy{}
}

// Can checks if the subject owns the resource. A nil resource is left to the
// profile check; a resource that is not Ownable is denied.
func (p *OwnershipPolicy) Can(_ context.Context, s Subject, _ gate.Action, resource any) bool {
	if resource == nil {
		return true
	}
	ownable, ok := resource.(Ownable)
	if !ok {
		return false
	}
	return ownable.GetUserID() == s.UserID
}
