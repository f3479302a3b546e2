package model

import "fmt"

func pickString(ext map[string]any, name string) (string, bool) {
	if ext == nil {
		return "", false
	}
	v, ok := ext[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func packCommonExt(ext map[string]any, names ...string) map[string]any {
	props := make(map[string]any)
	for _, name := range names {
		if v, ok := pickString(ext, name); ok {
			props[name] = v
		}
	}
	return props
}

// TenantSpec — top-level tenancy boundary.
type TenantSpec struct{}

func (TenantSpec) Kind() ItemKind    { return KindTenant }
func (TenantSpec) Label() string     { return "Tenant" }
func (TenantSpec) ExtProps() []string { return []string{"icon", "contact_phone", "note"} }

func (s TenantSpec) PackAdd(req *ItemAddReq) (map[string]any, error) {
	return packCommonExt(req.Ext, s.ExtProps()...), nil
}

func (s TenantSpec) PackModify(req *ItemModifyReq) (map[string]any, error) {
	return packCommonExt(req.Ext, s.ExtProps()...), nil
}

// AppSpec — an application under a tenant.
type AppSpec struct{}

func (AppSpec) Kind() ItemKind     { return KindApp }
func (AppSpec) Label() string      { return "App" }
func (AppSpec) ExtProps() []string { return []string{"icon", "sort"} }

func (s AppSpec) PackAdd(req *ItemAddReq) (map[string]any, error) {
	return packCommonExt(req.Ext, s.ExtProps()...), nil
}

func (s AppSpec) PackModify(req *ItemModifyReq) (map[string]any, error) {
	return packCommonExt(req.Ext, s.ExtProps()...), nil
}

// AccountSpec — a person or service identity.
type AccountSpec struct{}

func (AccountSpec) Kind() ItemKind     { return KindAccount }
func (AccountSpec) Label() string      { return "Account" }
func (AccountSpec) ExtProps() []string { return []string{"icon"} }

func (s AccountSpec) PackAdd(req *ItemAddReq) (map[string]any, error) {
	return packCommonExt(req.Ext, s.ExtProps()...), nil
}

func (s AccountSpec) PackModify(req *ItemModifyReq) (map[string]any, error) {
	return packCommonExt(req.Ext, s.ExtProps()...), nil
}

// RoleSpec — a grant bundle bindable to accounts.
type RoleSpec struct{}

func (RoleSpec) Kind() ItemKind     { return KindRole }
func (RoleSpec) Label() string      { return "Role" }
func (RoleSpec) ExtProps() []string { return []string{"icon", "sort"} }

func (s RoleSpec) PackAdd(req *ItemAddReq) (map[string]any, error) {
	return packCommonExt(req.Ext, s.ExtProps()...), nil
}

func (s RoleSpec) PackModify(req *ItemModifyReq) (map[string]any, error) {
	return packCommonExt(req.Ext, s.ExtProps()...), nil
}

// ResourceSpec — a protected resource. Sub-kind "api" additionally requires
// a method; its Code carries the URI and the pair forms the action key.
type ResourceSpec struct{}

func (ResourceSpec) Kind() ItemKind     { return KindResource }
func (ResourceSpec) Label() string      { return "Resource" }
func (ResourceSpec) ExtProps() []string { return []string{"res_kind", "method", "icon", "sort"} }

func (s ResourceSpec) PackAdd(req *ItemAddReq) (map[string]any, error) {
	props := packCommonExt(req.Ext, s.ExtProps()...)
	resKind, _ := props["res_kind"].(string)
	switch resKind {
	case ResKindAPI:
		if m, _ := props["method"].(string); m == "" {
			return nil, fmt.Errorf("api resource requires a method")
		}
		if req.Code == "" {
			return nil, fmt.Errorf("api resource requires a code (uri)")
		}
	case ResKindMenu, ResKindElement:
	default:
		return nil, fmt.Errorf("unknown resource sub-kind %q", resKind)
	}
	return props, nil
}

func (s ResourceSpec) PackModify(req *ItemModifyReq) (map[string]any, error) {
	props := packCommonExt(req.Ext, s.ExtProps()...)
	// The sub-kind is fixed at creation: changing it would silently detach
	// the resource from its cached action key.
	if _, ok := props["res_kind"]; ok {
		return nil, fmt.Errorf("resource sub-kind cannot be modified")
	}
	return props, nil
}
