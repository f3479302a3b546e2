package errors

import "errors"

var (
	ErrItemNotFound        = errors.New("item not found")
	ErrItemConflict        = errors.New("item with the same kind and code already exists")
	ErrItemNotVisible      = errors.New("item is outside the caller's scope")
	ErrItemAttached        = errors.New("item still has live relations")
	ErrItemDeleteForbidden = errors.New("tenants and apps can only be disabled, not deleted")
	ErrInvalidScope        = errors.New("scope level does not match own_paths depth")
	ErrScopeEscalation     = errors.New("cannot bind an item of a broader scope from a narrower one")
	ErrInvalidItemData     = errors.New("invalid item data")
)
