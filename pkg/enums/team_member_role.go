package enums

import "fmt"

// TeamMemberRole scopes what an invited member can do inside a team.
type TeamMemberRole string

const (
	TeamMemberRoleMember TeamMemberRole = "member"
	TeamMemberRoleAdmin  TeamMemberRole = "admin"
)

var validTeamMemberRoles = []TeamMemberRole{
	TeamMemberRoleMember,
	TeamMemberRoleAdmin,
}

// String implements fmt.Stringer.
func (r TeamMemberRole) String() string {
	return string(r)
}

// IsValid reports whether the value is known.
func (r TeamMemberRole) IsValid() bool {
	for _, candidate := range validTeamMemberRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseTeamMemberRole converts raw input into a TeamMemberRole.
func ParseTeamMemberRole(value string) (TeamMemberRole, error) {
	for _, candidate := range validTeamMemberRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid team member role %q", value)
}
