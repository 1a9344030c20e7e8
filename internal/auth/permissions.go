package auth

import "strings"

// Role names assigned to users.
const (
	RoleAdmin           = "admin"
	RoleCommitteeMember = "committee_member"
	RoleHost            = "host"
	RoleDriver          = "driver"
	RoleVolunteer       = "volunteer"
	RoleRecipient       = "recipient"
	RoleViewer          = "viewer"
)

// Permission is a named capability checked by route guards.
type Permission string

const (
	PermissionViewPhoneDirectory Permission = "view_phone_directory"
	PermissionEditData           Permission = "edit_data"
	PermissionDeleteData         Permission = "delete_data"
	PermissionGeneralChat        Permission = "general_chat"
	PermissionCommitteeChat      Permission = "committee_chat"
	PermissionHostChat           Permission = "host_chat"
	PermissionDriverChat         Permission = "driver_chat"
	PermissionRecipientChat      Permission = "recipient_chat"
	PermissionToolkitAccess      Permission = "toolkit_access"
	PermissionViewCollections    Permission = "view_collections"
	PermissionViewReports        Permission = "view_reports"
	PermissionViewProjects       Permission = "view_projects"
	PermissionViewUsers          Permission = "view_users"
	PermissionManageUsers        Permission = "manage_users"
)

var allPermissions = []Permission{
	PermissionViewPhoneDirectory,
	PermissionEditData,
	PermissionDeleteData,
	PermissionGeneralChat,
	PermissionCommitteeChat,
	PermissionHostChat,
	PermissionDriverChat,
	PermissionRecipientChat,
	PermissionToolkitAccess,
	PermissionViewCollections,
	PermissionViewReports,
	PermissionViewProjects,
	PermissionViewUsers,
	PermissionManageUsers,
}

var memberPermissions = []Permission{
	PermissionViewPhoneDirectory,
	PermissionGeneralChat,
	PermissionToolkitAccess,
	PermissionViewCollections,
	PermissionViewReports,
	PermissionViewProjects,
}

// KnownRole reports whether the role name is recognised.
func KnownRole(role string) bool {
	switch normalizeRole(role) {
	case RoleAdmin, RoleCommitteeMember, RoleHost, RoleDriver, RoleVolunteer, RoleRecipient, RoleViewer:
		return true
	default:
		return false
	}
}

// DefaultPermissionsForRole returns the permissions a role grants when a user
// has no explicit permission list.
func DefaultPermissionsForRole(role string) []Permission {
	switch normalizeRole(role) {
	case RoleAdmin:
		return append([]Permission(nil), allPermissions...)
	case RoleCommitteeMember:
		return withExtra(memberPermissions, PermissionCommitteeChat)
	case RoleHost:
		return withExtra(memberPermissions, PermissionHostChat)
	case RoleDriver:
		return withExtra(memberPermissions, PermissionDriverChat)
	case RoleVolunteer:
		return withExtra(memberPermissions, PermissionEditData)
	case RoleRecipient:
		return []Permission{PermissionGeneralChat, PermissionRecipientChat, PermissionViewCollections}
	case RoleViewer:
		return []Permission{
			PermissionViewPhoneDirectory,
			PermissionToolkitAccess,
			PermissionViewCollections,
			PermissionViewReports,
			PermissionViewProjects,
		}
	default:
		return nil
	}
}

// HasPermission reports whether a user with the role and explicit grants holds
// the permission. Admins hold everything; explicit grants replace role defaults.
func HasPermission(role string, granted []string, permission Permission) bool {
	if normalizeRole(role) == RoleAdmin {
		return true
	}
	if len(granted) > 0 {
		for _, candidate := range granted {
			if Permission(strings.TrimSpace(candidate)) == permission {
				return true
			}
		}
		return false
	}
	for _, candidate := range DefaultPermissionsForRole(role) {
		if candidate == permission {
			return true
		}
	}
	return false
}

// PermissionNames converts permissions to their string names.
func PermissionNames(permissions []Permission) []string {
	names := make([]string, 0, len(permissions))
	for _, permission := range permissions {
		names = append(names, string(permission))
	}
	return names
}

func withExtra(base []Permission, extra ...Permission) []Permission {
	combined := make([]Permission, 0, len(base)+len(extra))
	combined = append(combined, base...)
	return append(combined, extra...)
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
