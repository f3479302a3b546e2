package model

import "time"

// ItemKind is the typed kind of a stored item.
type ItemKind string

const (
	KindTenant   ItemKind = "tenant"
	KindApp      ItemKind = "app"
	KindAccount  ItemKind = "account"
	KindRole     ItemKind = "role"
	KindResource ItemKind = "res"
)

// Scope levels, narrowest last.
const (
	ScopeLevelGlobal  = 0
	ScopeLevelTenant  = 1
	ScopeLevelApp     = 2
	ScopeLevelPrivate = 3
)

// Resource sub-kinds carried in Item.Ext["res_kind"].
const (
	ResKindAPI     = "api"
	ResKindMenu    = "menu"
	ResKindElement = "ele"
)

// Item is an entity of a given kind placed at a position in the tenant/app
// hierarchy. OwnPaths is the slash-joined ancestor id chain ("t1/a1"); an
// empty OwnPaths means global scope.
type Item struct {
	ID         string         `json:"id"`
	Kind       ItemKind       `json:"kind"`
	Code       string         `json:"code,omitempty"`
	Name       string         `json:"name"`
	Disabled   bool           `json:"disabled"`
	ScopeLevel int            `json:"scope_level"`
	OwnPaths   string         `json:"own_paths"`
	Owner      string         `json:"owner"`
	Updater    string         `json:"updater,omitempty"`
	Ext        map[string]any `json:"ext,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// ExtString returns a string-valued ext property, or "" when absent.
func (i *Item) ExtString(name string) string {
	if i.Ext == nil {
		return ""
	}
	if v, ok := i.Ext[name].(string); ok {
		return v
	}
	return ""
}

// IsAPIResource reports whether the item is a resource of sub-kind API, the
// only resource kind with a cacheable action key.
func (i *Item) IsAPIResource() bool {
	return i.Kind == KindResource && i.ExtString("res_kind") == ResKindAPI
}

// ItemAddReq is the request to create an item. OwnPaths and Owner come from
// the acting identity's context, never from the request.
type ItemAddReq struct {
	Kind       ItemKind       `json:"kind" validate:"required"`
	Code       string         `json:"code,omitempty"`
	Name       string         `json:"name" validate:"required,max=255"`
	Disabled   bool           `json:"disabled"`
	ScopeLevel int            `json:"scope_level" validate:"gte=0,lte=3"`
	Ext        map[string]any `json:"ext,omitempty"`
}

// ItemModifyReq is a partial-field patch: nil fields leave the stored value
// untouched. Ext entries are merged key-by-key.
type ItemModifyReq struct {
	Code       *string        `json:"code,omitempty"`
	Name       *string        `json:"name,omitempty" validate:"omitempty,max=255"`
	Disabled   *bool          `json:"disabled,omitempty"`
	ScopeLevel *int           `json:"scope_level,omitempty" validate:"omitempty,gte=0,lte=3"`
	Ext        map[string]any `json:"ext,omitempty"`
}

// Empty reports whether the patch would change nothing.
func (r *ItemModifyReq) Empty() bool {
	return r.Code == nil && r.Name == nil && r.Disabled == nil && r.ScopeLevel == nil && len(r.Ext) == 0
}

// ItemFilter narrows item queries. OwnPaths is an exact match; combined with
// WithSubOwnPaths it also matches descendants.
type ItemFilter struct {
	IDs             []string `json:"ids,omitempty"`
	Kind            ItemKind `json:"kind,omitempty"`
	Name            string   `json:"name,omitempty"`
	Code            string   `json:"code,omitempty"`
	OwnPaths        string   `json:"own_paths,omitempty"`
	WithSubOwnPaths bool     `json:"with_sub_own_paths,omitempty"`
	Disabled        *bool    `json:"disabled,omitempty"`
	DescByCreate    bool     `json:"desc_by_create,omitempty"`
	DescByUpdate    bool     `json:"desc_by_update,omitempty"`
}

// ItemPage is one page of items plus the total match count.
type ItemPage struct {
	Records    []*Item `json:"records"`
	Total      int64   `json:"total"`
	PageNumber int     `json:"page_number"`
	PageSize   int     `json:"page_size"`
}
