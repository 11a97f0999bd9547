package auth

import "github.com/shiftaiot/iot-platform/internal/domain"

// Permission names an action on a resource family.
type Permission string

const (
	PermDeviceRead        Permission = "DEVICE_READ"
	PermDeviceWrite       Permission = "DEVICE_WRITE"
	PermDeviceDelete      Permission = "DEVICE_DELETE"
	PermRuleRead          Permission = "RULE_READ"
	PermRuleWrite         Permission = "RULE_WRITE"
	PermRuleDelete        Permission = "RULE_DELETE"
	PermMaintenanceRead   Permission = "MAINTENANCE_READ"
	PermMaintenanceWrite  Permission = "MAINTENANCE_WRITE"
	PermMaintenanceDelete Permission = "MAINTENANCE_DELETE"
	PermUserRead          Permission = "USER_READ"
	PermUserWrite         Permission = "USER_WRITE"
	PermUserDelete        Permission = "USER_DELETE"
	PermNotificationRead  Permission = "NOTIFICATION_READ"
	PermNotificationWrite Permission = "NOTIFICATION_WRITE"
	PermKnowledgeRead     Permission = "KNOWLEDGE_READ"
	PermKnowledgeWrite    Permission = "KNOWLEDGE_WRITE"
	PermKnowledgeDelete   Permission = "KNOWLEDGE_DELETE"
)

var allPermissions = []Permission{
	PermDeviceRead, PermDeviceWrite, PermDeviceDelete,
	PermRuleRead, PermRuleWrite, PermRuleDelete,
	PermMaintenanceRead, PermMaintenanceWrite, PermMaintenanceDelete,
	PermUserRead, PermUserWrite, PermUserDelete,
	PermNotificationRead, PermNotificationWrite,
	PermKnowledgeRead, PermKnowledgeWrite, PermKnowledgeDelete,
}

// AllPermissions returns every known permission.
func AllPermissions() []Permission {
	return append([]Permission(nil), allPermissions...)
}

// userPermissions is what a regular USER holds. ADMIN holds everything.
var userPermissions = map[Permission]struct{}{
	PermDeviceRead:       {},
	PermRuleRead:         {},
	PermMaintenanceRead:  {},
	PermMaintenanceWrite: {},
	PermNotificationRead: {},
	PermKnowledgeRead:    {},
}

// RoleHasPermission reports whether role grants perm.
func RoleHasPermission(role domain.Role, perm Permission) bool {
	switch role {
	case domain.RoleAdmin:
		return true
	case domain.RoleUser:
		_, ok := userPermissions[perm]
		return ok
	default:
		return false
	}
}
