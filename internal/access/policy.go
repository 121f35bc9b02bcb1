package access

// Action identifies a lifecycle transition or view gated by the access policy.
type Action string

const (
	ActionCreateLead       Action = "lead.create"
	ActionEditLead         Action = "lead.edit"
	ActionConvertLead      Action = "lead.convert"
	ActionCreateProject    Action = "project.create"
	ActionForwardProject   Action = "project.forward"
	ActionApproveProject   Action = "project.approve"
	ActionRejectProject    Action = "project.reject"
	ActionAssignOps        Action = "project.assign_ops"
	ActionUpdateWorkStatus Action = "project.work_status"
	ActionAdminOverride    Action = "project.override"
	ActionViewProjects     Action = "project.view"
	ActionViewCommercials  Action = "project.view_commercials"
	ActionRecordPayment    Action = "payment.record"
	ActionVerifyPayment    Action = "payment.verify"
	ActionViewTimeline     Action = "timeline.view"
	ActionManageUsers      Action = "users.manage"
)

// policy is the static permission table. It is the single source of truth for
// role gating; CanPerform is a pure, total function over it with default deny.
//
// Ownership-scoped rules (forward only by the creating sales user, work status
// only by the assigned ops user) still need the entity loaded, so the lifecycle
// engine enforces those after this coarse role check passes.
var policy = map[Action]map[Role]struct{}{
	ActionCreateLead:    grant(RoleSalesUser, RoleSalesManager),
	ActionEditLead:      grant(RoleSalesUser, RoleSalesManager),
	ActionConvertLead:   grant(RoleSalesUser, RoleSalesManager),
	ActionCreateProject: grant(RoleSalesUser, RoleSalesManager),

	ActionForwardProject: grant(RoleSalesUser, RoleSalesManager),

	// Approval authority extends to domain managers, not ADMIN alone.
	ActionApproveProject: grant(RoleAdmin, RoleSalesManager, RoleOpsManager),
	ActionRejectProject:  grant(RoleAdmin, RoleSalesManager, RoleOpsManager),
	ActionAssignOps:      grant(RoleAdmin, RoleSalesManager, RoleOpsManager),

	ActionUpdateWorkStatus: grant(RoleAdmin, RoleOpsManager, RoleOpsUser),
	ActionAdminOverride:    grant(RoleAdmin),

	ActionViewProjects: grant(RoleAdmin, RoleSalesManager, RoleOpsManager, RoleSalesUser, RoleOpsUser),

	// Commercial isolation: plain ops staff never see billing figures.
	ActionViewCommercials: grant(RoleAdmin, RoleSalesManager, RoleOpsManager, RoleSalesUser),

	// Any authenticated role may submit proof of payment; review is a
	// manager-level decision.
	ActionRecordPayment: grant(RoleAdmin, RoleSalesManager, RoleOpsManager, RoleSalesUser, RoleOpsUser),
	ActionVerifyPayment: grant(RoleAdmin, RoleSalesManager, RoleOpsManager),

	ActionViewTimeline: grant(RoleAdmin, RoleSalesManager, RoleOpsManager, RoleSalesUser, RoleOpsUser),
	ActionManageUsers:  grant(RoleAdmin),
}

// CanPerform reports whether the role may invoke the action. Unknown roles and
// unknown actions both deny.
func CanPerform(role Role, action Action) bool {
	roles, ok := policy[action]
	if !ok {
		return false
	}
	_, ok = roles[role]
	return ok
}

func grant(roles ...Role) map[Role]struct{} {
	set := make(map[Role]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}
