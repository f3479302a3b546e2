package errors

import "errors"

// Kind classifies kernel errors for callers that map them to a transport
// status. The kernel guarantees a stable kind per failure condition.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindUnauthorized
	KindBadRequest
)

// KindOf resolves the kind of an error produced by the kernel, unwrapping
// as needed. Unknown errors are internal.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrItemNotFound), errors.Is(err, ErrTokenNotFound):
		return KindNotFound
	case errors.Is(err, ErrItemConflict), errors.Is(err, ErrRelationConflict),
		errors.Is(err, ErrItemAttached), errors.Is(err, ErrItemDeleteForbidden):
		return KindConflict
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrItemNotVisible),
		errors.Is(err, ErrScopeEscalation):
		return KindUnauthorized
	case errors.Is(err, ErrInvalidValidity), errors.Is(err, ErrRelationSelf),
		errors.Is(err, ErrInvalidScope), errors.Is(err, ErrInvalidItemData),
		errors.Is(err, ErrInvalidRelData):
		return KindBadRequest
	default:
		return KindInternal
	}
}
