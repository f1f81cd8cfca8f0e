package auth

// Action is a named operation on a landlord's resources.
type Action string

// Action constants.
const (
	ActionLogPayment        Action = "payment:log"
	ActionIssueReceipt      Action = "receipt:issue"
	ActionViewTenants       Action = "tenant:view"
	ActionHandleMaintenance Action = "maintenance:handle"
	ActionGenerateReports   Action = "report:generate"
	ActionManageStaff       Action = "staff:manage"
	ActionManageProperties  Action = "property:manage"
)

// Actions lists every action in a stable order.
var Actions = []Action{
	ActionLogPayment,
	ActionIssueReceipt,
	ActionViewTenants,
	ActionHandleMaintenance,
	ActionGenerateReports,
	ActionManageStaff,
	ActionManageProperties,
}

// staffPermissionFlags maps each action a staff member may be granted to the
// flag that grants it. Actions missing here are never open to staff.
var staffPermissionFlags = map[Action]func(StaffPermissions) bool{
	ActionLogPayment:        func(p StaffPermissions) bool { return p.CanLogPayments },
	ActionIssueReceipt:      func(p StaffPermissions) bool { return p.CanIssueReceipts },
	ActionViewTenants:       func(p StaffPermissions) bool { return p.CanViewTenants },
	ActionHandleMaintenance: func(p StaffPermissions) bool { return p.CanHandleMaintenance },
	ActionGenerateReports:   func(p StaffPermissions) bool { return p.CanGenerateReports },
}

// CanPerform reports whether id may perform action on a resource owned by
// ownerID. An empty ownerID means the resource has no owner restriction.
//
// Staff act on behalf of their landlord, so for staff ownerID is compared
// with the landlord's id and the matching permission flag must be set.
func CanPerform(id *Identity, action Action, ownerID string) bool {
	if id == nil || !id.IsActive {
		return false
	}

	switch id.Role.Canonical() {
	case RoleSystemAdmin:
		return true
	case RoleLandlord:
		return ownerID == "" || ownerID == id.ID
	case RoleTenant:
		if action == ActionManageStaff || action == ActionManageProperties {
			return false
		}
		return ownerID != "" && ownerID == id.ID
	case RoleStaff:
		if id.OwnerLandlordID == "" {
			return false
		}
		if ownerID != "" && ownerID != id.OwnerLandlordID {
			return false
		}
		flag, ok := staffPermissionFlags[action]
		if !ok {
			return false
		}
		perms := DefaultStaffPermissions()
		if id.Permissions != nil {
			perms = *id.Permissions
		}
		return flag(perms)
	}
	return false
}

// Capabilities evaluates every action against the resources id works on:
// its own for landlords and tenants, its landlord's for staff, and any
// resource for SYSTEM_ADMIN.
func Capabilities(id *Identity) map[Action]bool {
	out := make(map[Action]bool, len(Actions))
	if id == nil {
		return out
	}

	owner := id.ID
	switch id.Role.Canonical() {
	case RoleSystemAdmin:
		owner = ""
	case RoleStaff:
		owner = id.OwnerLandlordID
	}
	for _, a := range Actions {
		out[a] = CanPerform(id, a, owner)
	}
	return out
}
