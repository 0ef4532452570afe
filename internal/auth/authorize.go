package auth

// Authorize decides whether the authenticated principal may perform the
// action guarded by the required permission key. It is a pure function of
// the embedded claims; no storage is consulted.
//
// Unauthenticated principals are denied. Superadmins are allowed
// unconditionally, bypassing permission inspection. Everyone else is
// allowed only on an exact key match.
func Authorize(claims *AccessClaims, requiredKey string) bool {
	if claims == nil || claims.Subject == "" {
		return false
	}
	if claims.IsSuperAdmin() {
		return true
	}
	return claims.HasPermission(requiredKey)
}
