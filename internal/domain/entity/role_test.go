package entity

import "testing"

func TestRoleFromString(t *testing.T) {
	tests := []struct {
		input string
		want  Role
	}{
		{input: "user", want: RoleUser},
		{input: "ADMIN", want: RoleAdmin},
		{input: " Nutritionist ", want: RoleNutritionist},
		{input: "", want: Role("")},
		{input: "superuser", want: Role("superuser")},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := RoleFromString(tt.input); got != tt.want {
				t.Fatalf("RoleFromString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsAllowed(t *testing.T) {
	admins := []Role{RoleAdmin}
	staff := []Role{RoleAdmin, RoleNutritionist}

	tests := []struct {
		name    string
		role    Role
		allowed []Role
		want    bool
	}{
		{name: "exact match", role: RoleAdmin, allowed: admins, want: true},
		{name: "case insensitive", role: Role("Admin"), allowed: admins, want: true},
		{name: "not listed", role: RoleUser, allowed: staff, want: false},
		{name: "empty role never matches", role: Role(""), allowed: admins, want: false},
		{name: "empty allow list", role: RoleAdmin, allowed: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAllowed(tt.role, tt.allowed); got != tt.want {
				t.Fatalf("IsAllowed(%q, %v) = %v, want %v", tt.role, tt.allowed, got, tt.want)
			}
		})
	}
}
