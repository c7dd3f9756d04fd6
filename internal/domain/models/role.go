// internal/domain/models/role.go
package models

import "strings"

// Role is the closed set of account roles.
type Role string

const (
	RoleSHSStudent         Role = "shs_student"
	RoleAlumni             Role = "alumni"
	RoleNonResearchTeacher Role = "nonresearch_teacher"
	RoleResearchTeacher    Role = "research_teacher"
	RoleAdmin              Role = "admin"
)

// AllRoles lists every role in display order.
var AllRoles = []Role{
	RoleSHSStudent,
	RoleAlumni,
	RoleNonResearchTeacher,
	RoleResearchTeacher,
	RoleAdmin,
}

var roleLabels = map[Role]string{
	RoleSHSStudent:         "SHS Student",
	RoleAlumni:             "Alumni",
	RoleNonResearchTeacher: "Non-Research Teacher",
	RoleResearchTeacher:    "Research Teacher",
	RoleAdmin:              "Admin",
}

// ParseRole converts a raw string into a Role. ok is false for unknown values.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	_, ok := roleLabels[r]
	return r, ok
}

// RegistrableRoles returns the roles a visitor may pick when registering.
func RegistrableRoles() []Role {
	out := make([]Role, 0, len(AllRoles)-1)
	for _, r := range AllRoles {
		if r.Registrable() {
			out = append(out, r)
		}
	}
	return out
}

func (r Role) String() string { return string(r) }

// Label is the human-readable role name.
func (r Role) Label() string {
	if l, ok := roleLabels[r]; ok {
		return l
	}
	return string(r)
}

func (r Role) Valid() bool {
	_, ok := roleLabels[r]
	return ok
}

func (r Role) Registrable() bool { return r.Valid() && r != RoleAdmin }

func (r Role) IsStudent() bool { return r == RoleSHSStudent || r == RoleAlumni }

func (r Role) IsTeacher() bool {
	return r == RoleNonResearchTeacher || r == RoleResearchTeacher || r == RoleAdmin
}

func (r Role) CanApproveAccounts() bool { return r == RoleAdmin }

func (r Role) CanManageUsers() bool { return r == RoleAdmin }

// CanReviewConsent covers guardian-consent approval and denial.
func (r Role) CanReviewConsent() bool { return r.IsTeacher() }

func (r Role) CanManagePapers() bool { return r == RoleResearchTeacher || r == RoleAdmin }

// BypassesApproval reports whether the role is exempt from the approval gate.
func (r Role) BypassesApproval() bool { return r == RoleAdmin }
