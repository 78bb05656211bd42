package auth

// Capability represents a named capability in the system.
type Capability string

// Capability constants.
const (
	CapDashboardView  Capability = "dashboard:view"
	CapSensorsRead    Capability = "sensors:read"
	CapSensorsReadAll Capability = "sensors:read:all"
	CapSensorsExport  Capability = "sensors:export"
	CapSecurityRead   Capability = "security:read"
	CapUsersManage    Capability = "users:manage"
	CapAuditRead      Capability = "audit:read"
)

// roleCapabilities maps each role to its granted capabilities.
// This is the single source of truth for the authorisation model; it
// is fixed at compile time and never modified at runtime.
var roleCapabilities = map[Role][]Capability{
	RoleViewer: {
		CapDashboardView,
		CapSensorsRead,
	},
	RoleUser: {
		CapDashboardView,
		CapSensorsRead,
		CapSensorsReadAll,
		CapSensorsExport,
		CapSecurityRead,
	},
	RoleAdmin: {
		CapDashboardView,
		CapSensorsRead,
		CapSensorsReadAll,
		CapSensorsExport,
		CapSecurityRead,
		CapUsersManage,
		CapAuditRead,
	},
}

// Allows returns true if the given role grants the capability.
// Unknown roles and unknown capabilities deny.
func Allows(role Role, cap Capability) bool {
	caps, ok := roleCapabilities[role]
	if !ok {
		return false
	}
	for _, c := range caps {
		if c == cap {
			return true
		}
	}
	return false
}

// CapabilitiesForRole returns all capabilities granted to a role.
// Returns nil for unknown roles.
func CapabilitiesForRole(role Role) []Capability {
	caps := roleCapabilities[role]
	if caps == nil {
		return nil
	}
	result := make([]Capability, len(caps))
	copy(result, caps)
	return result
}
