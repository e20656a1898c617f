package roles

// Capability is an atomic permission resolved from a role plus the
// organization's verification state. The set is closed.
type Capability string

const (
	CapCreateContent        Capability = "create-content"
	CapPublishWithoutReview Capability = "publish-without-review"
	CapTagBreakingNews      Capability = "tag-breaking-news"
	CapCreateInvestigation  Capability = "create-investigation"
	CapManageOrgSettings    Capability = "manage-org-settings"
	CapInviteMembers        Capability = "invite-members"
	CapManageMembers        Capability = "manage-members"
	CapManageDepartments    Capability = "manage-departments"
	CapModerateOrgContent   Capability = "moderate-org-content"
	CapEnhancedUploadQuota  Capability = "enhanced-upload-quota"
)

// roleCapabilities is the single source of truth for what a role can do.
// Authorization checks go through Grants, never through role comparisons
// at call sites.
var roleCapabilities = map[Role]map[Capability]bool{
	RoleAdmin: {
		CapCreateContent:        true,
		CapPublishWithoutReview: true,
		CapTagBreakingNews:      true,
		CapCreateInvestigation:  true,
		CapManageOrgSettings:    true,
		CapInviteMembers:        true,
		CapManageMembers:        true,
		CapManageDepartments:    true,
		CapModerateOrgContent:   true,
		CapEnhancedUploadQuota:  true,
	},
	RoleEditor: {
		CapCreateContent:        true,
		CapPublishWithoutReview: true,
		CapTagBreakingNews:      true,
		CapCreateInvestigation:  true,
		CapInviteMembers:        true,
		CapManageMembers:        true,
		CapModerateOrgContent:   true,
		CapEnhancedUploadQuota:  true,
	},
	RoleSeniorReporter: {
		CapCreateContent:        true,
		CapPublishWithoutReview: true,
		CapTagBreakingNews:      true,
		CapCreateInvestigation:  true,
		CapEnhancedUploadQuota:  true,
	},
	RoleReporter: {
		CapCreateContent:       true,
		CapEnhancedUploadQuota: true,
	},
	RoleContributor: {
		CapCreateContent: true,
	},
}

// verifiedOnly lists capabilities that additionally require the
// organization to be verified. Members of unverified organizations never
// receive these, regardless of role.
var verifiedOnly = map[Capability]bool{
	CapTagBreakingNews:     true,
	CapEnhancedUploadQuota: true,
	CapCreateInvestigation: true,
}

// Upload quotas in bytes.
const (
	BaseUploadLimit     = 50 << 20  // 50 MB platform baseline
	EnhancedUploadLimit = 200 << 20 // 200 MB for verified newsrooms
)

// Grants reports whether a role holds a capability given the owning
// organization's verification state.
func Grants(role Role, orgVerified bool, cap Capability) bool {
	if verifiedOnly[cap] && !orgVerified {
		return false
	}
	return roleCapabilities[role][cap]
}

// RequiresVerifiedOrg reports whether the capability is gated on
// organization verification.
func RequiresVerifiedOrg(cap Capability) bool {
	return verifiedOnly[cap]
}

// Capabilities returns the capability set a role resolves to, given the
// organization's verification state.
func Capabilities(role Role, orgVerified bool) []Capability {
	caps := make([]Capability, 0, len(roleCapabilities[role]))
	for cap := range roleCapabilities[role] {
		if Grants(role, orgVerified, cap) {
			caps = append(caps, cap)
		}
	}
	return caps
}
