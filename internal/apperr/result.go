package apperr

import "errors"

// Result is the structured outcome handed to the collaborator layer, which
// decides presentation.
type Result[T any] struct {
	Success bool              `json:"success"`
	Kind    Kind              `json:"error_kind,omitempty"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Value   T                 `json:"value,omitempty"`
}

// ResultOf folds a (value, error) pair into a Result.
func ResultOf[T any](value T, err error) Result[T] {
	if err == nil {
		return Result[T]{Success: true, Value: value}
	}
	r := Result[T]{Kind: KindOf(err)}
	var ae *Error
	if errors.As(err, &ae) {
		r.Message = ae.Message
		r.Fields = ae.Fields
	}
	if r.Kind == KindStorage {
		// backend details stay in the logs
		r.Message = "temporarily unavailable"
	}
	return r
}
