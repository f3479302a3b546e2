package config

// Basic holds the well-known item ids every console needs: the bootstrap
// admin roles. It is resolved once at startup from the store and passed by
// reference into the services; nothing mutates it afterwards.
type Basic struct {
	RoleSysAdminID    string
	RoleTenantAdminID string
	RoleAppAdminID    string
}

// Bootstrap role codes, stable business keys of the three admin roles.
const (
	RoleCodeSysAdmin    = "sys_admin"
	RoleCodeTenantAdmin = "tenant_admin"
	RoleCodeAppAdmin    = "app_admin"
)

// IsAdminRole reports whether the id names one of the bootstrap admin roles.
func (b *Basic) IsAdminRole(roleID string) bool {
	if b == nil || roleID == "" {
		return false
	}
	return roleID == b.RoleSysAdminID || roleID == b.RoleTenantAdminID || roleID == b.RoleAppAdminID
}
