package permissions

import (
	"testing"

	"github.com/protocolo/protocolo-backend/pkg/actor"
	"github.com/stretchr/testify/assert"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name     string
		perms    []string
		required string
		want     bool
	}{
		{"empty requirement", nil, "", true},
		{"full access", []string{"*"}, ProtocolsDelete, true},
		{"exact", []string{ProtocolsRead}, ProtocolsRead, true},
		{"resource wildcard", []string{"anexos.*"}, AttachmentsDelete, true},
		{"wildcard does not cross resources", []string{"anexos.*"}, ProtocolsRead, false},
		{"prefix is not a wildcard", []string{"protocolos.*"}, "protocolosx.read", false},
		{"missing", []string{StaffRead}, UsersManage, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPermission(tt.perms, tt.required))
		})
	}
}

func TestRoleHas(t *testing.T) {
	assert.True(t, RoleHas(actor.RoleAdmin, UsersManage))
	assert.True(t, RoleHas(actor.RoleAdmin, ProtocolsDelete))
	assert.True(t, RoleHas(actor.RolePadrao, ProtocolsUpdate))
	assert.False(t, RoleHas(actor.RolePadrao, UsersManage))
	assert.True(t, RoleHas(actor.RoleUser, ProtocolsMove))
	assert.False(t, RoleHas(actor.RoleUser, ProtocolsDelete))
	assert.False(t, RoleHas(actor.RoleUser, AttachmentsDelete))

	assert.True(t, RoleHas(actor.RoleSuperAdmin, TenantsManage))
	assert.False(t, RoleHas(actor.RoleSuperAdmin, ProtocolsRead))
	assert.False(t, RoleHas("unknown", ProtocolsRead))

	assert.True(t, HasAnyPermission(ForRole(actor.RoleUser), []string{UsersManage, StaffRead}))
}
