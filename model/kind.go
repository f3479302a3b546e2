package model

import "fmt"

// KindSpec is implemented once per concrete item kind. It injects the node
// label and the kind-specific property packing into the generic item
// codepath, replacing per-kind CRUD implementations.
type KindSpec interface {
	Kind() ItemKind
	// Label is the Neo4j node label for the kind.
	Label() string
	// PackAdd validates and extracts the kind-specific ext properties of an
	// add request.
	PackAdd(req *ItemAddReq) (map[string]any, error)
	// PackModify extracts the kind-specific ext properties of a patch; only
	// supplied entries are returned.
	PackModify(req *ItemModifyReq) (map[string]any, error)
	// ExtProps names the ext properties the kind stores, used when mapping
	// nodes back to items.
	ExtProps() []string
}

// KindRegistry resolves kinds to their specs. Built once at startup and
// passed by reference; there is no process-wide mutable registry.
type KindRegistry struct {
	specs map[ItemKind]KindSpec
}

func NewKindRegistry(specs ...KindSpec) *KindRegistry {
	r := &KindRegistry{specs: make(map[ItemKind]KindSpec, len(specs))}
	for _, s := range specs {
		r.specs[s.Kind()] = s
	}
	return r
}

// DefaultKindRegistry registers the five built-in kinds.
func DefaultKindRegistry() *KindRegistry {
	return NewKindRegistry(
		TenantSpec{}, AppSpec{}, AccountSpec{}, RoleSpec{}, ResourceSpec{},
	)
}

func (r *KindRegistry) Get(kind ItemKind) (KindSpec, error) {
	spec, ok := r.specs[kind]
	if !ok {
		return nil, fmt.Errorf("unknown item kind %q", kind)
	}
	return spec, nil
}

func (r *KindRegistry) Kinds() []ItemKind {
	kinds := make([]ItemKind, 0, len(r.specs))
	for k := range r.specs {
		kinds = append(kinds, k)
	}
	return kinds
}
