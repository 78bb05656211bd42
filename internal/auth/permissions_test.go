package auth

import "testing"

func TestAllows_RoleGrants(t *testing.T) {
	tests := []struct {
		role Role
		cap  Capability
		want bool
	}{
		{RoleViewer, CapDashboardView, true},
		{RoleViewer, CapSensorsRead, true},
		{RoleViewer, CapSensorsReadAll, false},
		{RoleViewer, CapSensorsExport, false},
		{RoleViewer, CapUsersManage, false},
		{RoleViewer, CapAuditRead, false},

		{RoleUser, CapDashboardView, true},
		{RoleUser, CapSensorsReadAll, true},
		{RoleUser, CapSensorsExport, true},
		{RoleUser, CapSecurityRead, true},
		{RoleUser, CapUsersManage, false},
		{RoleUser, CapAuditRead, false},

		{RoleAdmin, CapDashboardView, true},
		{RoleAdmin, CapUsersManage, true},
		{RoleAdmin, CapAuditRead, true},
	}

	for _, tt := range tests {
		if got := Allows(tt.role, tt.cap); got != tt.want {
			t.Errorf("Allows(%q, %q) = %v, want %v", tt.role, tt.cap, got, tt.want)
		}
	}
}

func TestAllows_FailsClosed(t *testing.T) {
	if Allows(Role("superuser"), CapDashboardView) {
		t.Error("unknown role must deny")
	}
	if Allows(RoleAdmin, Capability("reactor:scram")) {
		t.Error("unknown capability must deny even for admin")
	}
	if Allows(Role(""), Capability("")) {
		t.Error("empty role and capability must deny")
	}
}

func TestCapabilitiesForRole(t *testing.T) {
	caps := CapabilitiesForRole(RoleAdmin)
	if len(caps) == 0 {
		t.Fatal("admin should have capabilities")
	}

	// The returned slice is a copy; mutating it must not change the table.
	caps[0] = Capability("mutated")
	if !Allows(RoleAdmin, CapDashboardView) {
		t.Error("mutating the returned slice must not affect the grant table")
	}

	if CapabilitiesForRole(Role("nope")) != nil {
		t.Error("unknown role should return nil")
	}
}

func TestIsValidRole(t *testing.T) {
	for _, r := range ValidRoles {
		if !IsValidRole(r) {
			t.Errorf("IsValidRole(%q) = false, want true", r)
		}
	}
	if IsValidRole(Role("owner")) {
		t.Error("owner is not a valid role here")
	}
	if IsValidRole(Role("")) {
		t.Error("empty role is not valid")
	}
}

func TestIsValidUsername(t *testing.T) {
	valid := []string{"alice", "bob.smith", "user_1", "a-b", "A", "x.y-z_9"}
	for _, u := range valid {
		if !IsValidUsername(u) {
			t.Errorf("IsValidUsername(%q) = false, want true", u)
		}
	}

	invalid := []string{"", "with space", "email@host", "slash/name", "naïve",
		"waytoolong-waytoolong-waytoolong-waytoolong-waytoolong-waytoolong-x"}
	for _, u := range invalid {
		if IsValidUsername(u) {
			t.Errorf("IsValidUsername(%q) = true, want false", u)
		}
	}
}
