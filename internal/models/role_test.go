package models

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gridvolt/auth-service/internal/utils"
)

func TestParseRole(t *testing.T) {
	for _, valid := range []string{"administrator", "installer", "user"} {
		role, err := ParseRole(valid)
		require.NoError(t, err)
		require.Equal(t, valid, role.String())
	}

	for _, invalid := range []string{"", "admin", "Administrator", "superuser"} {
		_, err := ParseRole(invalid)
		require.ErrorIs(t, err, utils.ErrMalformedToken, "input %q", invalid)
	}
}

func TestUserHasRole(t *testing.T) {
	u := &User{Roles: []Role{RoleInstaller, RoleUser}}
	require.True(t, u.HasRole(RoleInstaller))
	require.True(t, u.HasRole(RoleUser))
	require.False(t, u.HasRole(RoleAdministrator))
}
