package cnst

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRole_Constants(t *testing.T) {
	assert.Equal(t, Role("admin"), RoleAdmin)
	assert.Equal(t, Role("security"), RoleSecurity)
	assert.Equal(t, Role("resident"), RoleResident)
	assert.Equal(t, Role("manager"), RoleManager)
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleSecurity.Valid())
	assert.True(t, RoleResident.Valid())
	assert.True(t, RoleManager.Valid())
	assert.False(t, Role("superuser").Valid())
	assert.False(t, Role("").Valid())
}
