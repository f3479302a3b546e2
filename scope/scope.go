// Package scope encodes and decodes hierarchical ownership paths and
// computes the visibility rules every other component applies. An own_paths
// value is the slash-joined ancestor id chain of an item ("t1/a1"); an empty
// value is the global scope.
package scope

import "strings"

// Split returns the ancestor ids of an own_paths value, oldest first.
func Split(ownPaths string) []string {
	if ownPaths == "" {
		return nil
	}
	return strings.Split(ownPaths, "/")
}

// Depth is the scope level implied by an own_paths value: 0 global,
// 1 tenant, 2 app.
func Depth(ownPaths string) int {
	return len(Split(ownPaths))
}

// PathItem returns the ancestor id at the given level (1-based: level 1 is
// the tenant id, level 2 the app id). A missing ancestor is an empty result,
// not an error; callers decide whether that matters.
func PathItem(level int, ownPaths string) (string, bool) {
	parts := Split(ownPaths)
	if level < 1 || level > len(parts) {
		return "", false
	}
	return parts[level-1], true
}

// MaxLevelID returns the deepest ancestor id, used to pick the narrowest
// applicable tenant/app scoped policy when none is named explicitly.
func MaxLevelID(ownPaths string) (string, bool) {
	parts := Split(ownPaths)
	if len(parts) == 0 {
		return "", false
	}
	return parts[len(parts)-1], true
}

// IsPrefix reports whether ancestor is a path prefix of descendant on
// segment boundaries. The empty path is a prefix of everything.
func IsPrefix(ancestor, descendant string) bool {
	if ancestor == "" {
		return true
	}
	return descendant == ancestor || strings.HasPrefix(descendant, ancestor+"/")
}

// ChildPath appends an id to a path.
func ChildPath(parent, id string) string {
	if parent == "" {
		return id
	}
	return parent + "/" + id
}

// CheckScope decides whether a caller may see a candidate item. The rule is
// asymmetric: a global candidate is visible to everyone; otherwise the
// caller must sit at or above the candidate's position (caller path prefix
// of candidate path); with withSub the reverse direction also qualifies, so
// a broader-scoped caller can pull in descendants. A tenant admin therefore
// sees its own tenant's data, a sys admin sees all tenants, and sibling
// tenants stay invisible to each other.
func CheckScope(candPaths string, candScopeLevel int, callerPaths string, withSub bool) bool {
	if candScopeLevel == ScopeLevelGlobal {
		return true
	}
	if IsPrefix(callerPaths, candPaths) {
		return true
	}
	if withSub && IsPrefix(candPaths, callerPaths) {
		return true
	}
	return false
}

// ScopeLevelGlobal mirrors model.ScopeLevelGlobal without importing model;
// scope is a leaf package.
const ScopeLevelGlobal = 0
