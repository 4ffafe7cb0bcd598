package actor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActorContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, FromContext(ctx))
	assert.Equal(t, "sistema", LoginOr(ctx, "sistema"))

	a := &Actor{UserID: 3, Login: "maria", Role: RoleAdmin, Schema: "alpha"}
	ctx = WithActor(ctx, a)

	assert.Same(t, a, FromContext(ctx))
	assert.Equal(t, "maria", LoginOr(ctx, "sistema"))
	assert.Equal(t, "maria@alpha (admin)", a.String())
	assert.False(t, a.IsSuperAdmin())
}

func TestActor_SuperAdmin(t *testing.T) {
	a := &Actor{Login: "root", Role: RoleSuperAdmin}
	assert.True(t, a.IsSuperAdmin())
	assert.Equal(t, "root (super_admin)", a.String())

	var none *Actor
	assert.False(t, none.IsSuperAdmin())
	assert.Equal(t, "system", none.String())
}
