package model

// Context is the acting identity: who is operating and at what scope. It is
// passed by pointer into every kernel call and never mutated by the kernel.
// The same structure, serialized, is what the token cache stores per session.
type Context struct {
	OwnPaths string   `json:"own_paths"`
	Owner    string   `json:"owner"`
	Roles    []string `json:"roles,omitempty"`
	Groups   []string `json:"groups,omitempty"`
}

// HasRole reports whether the identity carries the given role id.
func (c *Context) HasRole(roleID string) bool {
	for _, r := range c.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}
