package gate

import "context"

// Policy defines authorization rules for a resource type.
// Implementations check whether subject may perform action on resource.
type Policy[U any] interface {
	// Can returns true if subject is authorized to perform action on resource.
	Can(ctx context.Context, subject U, action Action, resource any) bool
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc[U any] func(ctx context.Context, subject U, action Action, resource any) bool

func (f PolicyFunc[U]) Can(ctx context.Context, subject U, action Action, resource any) bool {
	return f(ctx, subject, action, resource)
}
