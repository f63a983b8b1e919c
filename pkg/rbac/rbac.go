package rbac

import "errors"

// 权限常量
const (
	PermissionReadOwnNotifications   = "notification:read_own"
	PermissionManageOwnNotifications = "notification:manage_own"
	PermissionSendNotification       = "notification:send"
	PermissionInjectDomainEvent      = "event:inject"
)

// 角色常量
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// 角色权限映射
var rolePermissions = map[string][]string{
	RoleUser: {
		PermissionReadOwnNotifications,
		PermissionManageOwnNotifications,
	},
	RoleAdmin: {
		PermissionReadOwnNotifications,
		PermissionManageOwnNotifications,
		PermissionSendNotification,
		PermissionInjectDomainEvent,
	},
}

// ErrPermissionDenied 权限不足
var ErrPermissionDenied = errors.New("insufficient permissions")

// IsKnownRole 角色是否合法
func IsKnownRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// HasPermission 检查角色是否有指定权限
func HasPermission(role, permission string) bool {
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission 返回错误而不是布尔值，便于处理
func CheckPermission(role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{Role: role, Permission: permission}
	}
	return nil
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return ErrPermissionDenied.Error()
}

func (e *PermissionDeniedError) Unwrap() error {
	return ErrPermissionDenied
}
