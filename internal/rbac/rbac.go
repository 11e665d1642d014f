package rbac

// Role constants
const (
	RoleLedgerBridge = "ledger-bridge"
	RoleOperator     = "operator"
)

// Permission constants
const (
	PermRecordAttempt = "record_attempt"
	PermExpirePot     = "expire_pot"
	PermReadResult    = "read_result"
	PermReadAudit     = "read_audit"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	RoleLedgerBridge: {
		PermRecordAttempt, PermExpirePot, PermReadResult,
	},
	RoleOperator: {
		PermExpirePot, PermReadResult, PermReadAudit,
		// Operator CANNOT record attempts: attempt ids come from the ledger only
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

func ValidRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}
