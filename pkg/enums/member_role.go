package enums

// MemberRole identifies the caller class carried in access tokens.
type MemberRole string

const (
	MemberRoleRecruiter     MemberRole = "recruiter"
	MemberRoleCompanyAdmin  MemberRole = "company_admin"
	MemberRolePlatformAdmin MemberRole = "platform_admin"
	MemberRoleCandidate     MemberRole = "candidate"
)

var memberRoles = []MemberRole{
	MemberRoleRecruiter,
	MemberRoleCompanyAdmin,
	MemberRolePlatformAdmin,
	MemberRoleCandidate,
}

func (r MemberRole) IsValid() bool { return member(memberRoles, r) }

// IsCompanyMember reports whether the role acts on behalf of a hiring company.
func (r MemberRole) IsCompanyMember() bool {
	return r == MemberRoleRecruiter || r == MemberRoleCompanyAdmin
}

// ParseMemberRole converts raw input into MemberRole.
func ParseMemberRole(value string) (MemberRole, error) {
	return lookup("member role", memberRoles, value, false)
}
