// Package gate provides a small Gate/Policy authorization system.
// Subjects resolve to a Profile (a named set of "resource:action" permissions)
// and resource types may additionally register a Policy that inspects the
// concrete resource. The package has no dependency on domain models.
//
// The package uses generics so the subject can be anything comparable:
//   - Gate[uint] for plain user ID based auth
//   - Gate[Subject] for (user, scope) pairs
package gate

import "context"

// Gate combines profile permissions with resource-specific policies.
// Authorization flow:
//  1. Reject the zero subject
//  2. Resolve the subject's profile and require resource:action
//  3. If a policy is registered and a resource is provided, require it too
type Gate[U comparable] struct {
	resolver ProfileResolver[U]
	policies map[string]Policy[U]
}

// New creates a gate with the given profile resolver.
func New[U comparable](resolver ProfileResolver[U]) *Gate[U] {
	return &Gate[U]{
		resolver: resolver,
		policies: make(map[string]Policy[U]),
	}
}

// Register adds a resource-specific policy. Overwrites any existing one.
func (g *Gate[U]) Register(resourceType string, p Policy[U]) {
	g.policies[resourceType] = p
}

// Authorize returns nil when subject may perform action on resourceType.
// Resolver failures are returned unchanged so callers can tell a denial
// from a storage problem; every denial is ErrUnauthorized.
func (g *Gate[U]) Authorize(ctx context.Context, subject U, action Action, resourceType string, resource any) error {
	var zero U
	if subject == zero {
		return ErrUnauthorized
	}
	profile, err := g.resolver.Resolve(ctx, subject)
	if err != nil {
		return err
	}
	if profile == nil || !profile.HasPermission(NewPermission(resourceType, action)) {
		return ErrUnauthorized
	}
	if resource != nil {
		if policy, ok := g.policies[resourceType]; ok {
			if !policy.Can(ctx, subject, action, resource) {
				return ErrUnauthorized
			}
		}
	}
	return nil
}

// Can is a convenience wrapper returning bool instead of error.
func (g *Gate[U]) Can(ctx context.Context, subject U, action Action, resourceType string, resource any) bool {
	return g.Authorize(ctx, subject, action, resourceType, resource) == nil
}

// Profile returns the resolved profile for subject, or nil.
func (g *Gate[U]) Profile(ctx context.Context, subject U) (Profile, error) {
	var zero U
	if subject == zero {
		return nil, nil
	}
	return g.resolver.Resolve(ctx, subject)
}
