package auth

// AuthorizationRequest describes one access decision.
type AuthorizationRequest struct {
	ActorRole     Role
	ActorID       string
	RequiredRoles []Role

	// ResourceOwnerID, when non-empty, restricts access to the owner.
	ResourceOwnerID string
}

// Authorize decides req. Rules apply in order:
//
//  1. SYSTEM_ADMIN is always authorised.
//  2. An actor whose role is not in RequiredRoles is denied.
//  3. With a ResourceOwnerID, only the owner is authorised.
//  4. Otherwise the actor is authorised.
//
// Roles are compared in canonical spelling.
func Authorize(req AuthorizationRequest) bool {
	if req.ActorRole.Is(RoleSystemAdmin) {
		return true
	}
	if !containsRole(req.RequiredRoles, req.ActorRole) {
		return false
	}
	if req.ResourceOwnerID != "" {
		return req.ActorID != "" && req.ActorID == req.ResourceOwnerID
	}
	return true
}
