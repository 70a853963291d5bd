package models

// Permission constants
const (
	// Account permissions
	PermissionAccountRead = "account:read"

	// Transfer permissions
	PermissionTransferWrite = "transfer:write"

	// One-time code permissions
	PermissionOTPWrite = "otp:write"

	// Admin permissions
	PermissionReadAdmin  = "admin:read"
	PermissionWriteAdmin = "admin:write"
)

// Roles
const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// GetDefaultPermissions returns default permissions based on role
func GetDefaultPermissions(role string) []string {
	switch role {
	case RoleAdmin:
		return []string{
			PermissionReadAdmin,
			PermissionWriteAdmin,
			PermissionAccountRead,
			PermissionTransferWrite,
			PermissionOTPWrite,
		}
	case RoleCustomer:
		return []string{
			PermissionAccountRead,
			PermissionTransferWrite,
			PermissionOTPWrite,
		}
	default:
		return []string{}
	}
}
