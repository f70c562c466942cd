package models

// Capability names one boolean permission check.
type Capability string

const (
	CanAccessLeads      Capability = "canAccessLeads"
	CanAccessStudents   Capability = "canAccessStudents"
	CanAccessAgencies   Capability = "canAccessAgencies"
	CanAccessUsers      Capability = "canAccessUsers"
	CanAccessTimesheets Capability = "canAccessTimesheets"
	CanImport           Capability = "canImport"
	CanExport           Capability = "canExport"
	CanBulkEdit         Capability = "canBulkEdit"
)

// Capabilities is the role-derived permission set handed to clients.
type Capabilities struct {
	CanAccessLeads      bool `json:"canAccessLeads"`
	CanAccessStudents   bool `json:"canAccessStudents"`
	CanAccessAgencies   bool `json:"canAccessAgencies"`
	CanAccessUsers      bool `json:"canAccessUsers"`
	CanAccessTimesheets bool `json:"canAccessTimesheets"`
	CanImport           bool `json:"canImport"`
	CanExport           bool `json:"canExport"`
	CanBulkEdit         bool `json:"canBulkEdit"`
}

// CapabilitiesFor derives the permission set of a role. Unknown roles get nothing.
func CapabilitiesFor(role UserRole) Capabilities {
	switch role {
	case RoleSuperAdmin, RoleAdmin:
		return Capabilities{
			CanAccessLeads:      true,
			CanAccessStudents:   true,
			CanAccessAgencies:   true,
			CanAccessUsers:      true,
			CanAccessTimesheets: true,
			CanImport:           true,
			CanExport:           true,
			CanBulkEdit:         true,
		}
	case RoleCounsellor:
		return Capabilities{
			CanAccessLeads:      true,
			CanAccessStudents:   true,
			CanAccessAgencies:   true,
			CanAccessTimesheets: true,
			CanImport:           true,
			CanExport:           true,
		}
	case RoleAgent:
		return Capabilities{
			CanAccessLeads:    true,
			CanAccessStudents: true,
		}
	}
	return Capabilities{}
}

// Has reports whether the named capability is granted.
func (c Capabilities) Has(name Capability) bool {
	switch name {
	case CanAccessLeads:
		return c.CanAccessLeads
	case CanAccessStudents:
		return c.CanAccessStudents
	case CanAccessAgencies:
		return c.CanAccessAgencies
	case CanAccessUsers:
		return c.CanAccessUsers
	case CanAccessTimesheets:
		return c.CanAccessTimesheets
	case CanImport:
		return c.CanImport
	case CanExport:
		return c.CanExport
	case CanBulkEdit:
		return c.CanBulkEdit
	}
	return false
}
