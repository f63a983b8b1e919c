package rbac

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role       string
		permission string
		want       bool
	}{
		{RoleUser, PermissionReadOwnNotifications, true},
		{RoleUser, PermissionManageOwnNotifications, true},
		{RoleUser, PermissionSendNotification, false},
		{RoleUser, PermissionInjectDomainEvent, false},
		{RoleAdmin, PermissionSendNotification, true},
		{RoleAdmin, PermissionInjectDomainEvent, true},
		{"guest", PermissionReadOwnNotifications, false},
	}
	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.permission, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPermission(tt.role, tt.permission))
		})
	}
}

func TestCheckPermission(t *testing.T) {
	assert.NoError(t, CheckPermission(RoleAdmin, PermissionSendNotification))

	err := CheckPermission(RoleUser, PermissionSendNotification)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	var denied *PermissionDeniedError
	assert.True(t, errors.As(err, &denied))
	assert.Equal(t, RoleUser, denied.Role)

	assert.True(t, IsKnownRole(RoleUser))
	assert.False(t, IsKnownRole("root"))
}
