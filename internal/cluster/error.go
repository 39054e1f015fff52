package cluster

import "fmt"

// Kind classifies a cluster operation failure into the taxonomy callers
// need to distinguish: a not_found on create can be treated as an
// idempotent success, an unavailable should surface as a 503, etc.
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindUnavailable Kind = "unavailable"
	KindOther       Kind = "other"
)

// Error wraps a backend failure with its classification and the operation
// dimensions useful for logging, without forcing callers to understand the
// underlying client-go error types.
type Error struct {
	Kind      Kind
	Namespace string
	Resource  string
	Name      string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cluster: %s %s/%s in namespace %q: %s", e.Kind, e.Resource, e.Name, e.Namespace, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a cluster.Error of kind not_found.
func IsNotFound(err error) bool {
	var ce *Error
	return asError(err, &ce) && ce.Kind == KindNotFound
}

// IsUnavailable reports whether err is a cluster.Error of kind unavailable.
func IsUnavailable(err error) bool {
	var ce *Error
	return asError(err, &ce) && ce.Kind == KindUnavailable
}

func asError(err error, target **Error) bool {
	for err != nil {
		if ce, ok := err.(*Error); ok {
			*target = ce
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
