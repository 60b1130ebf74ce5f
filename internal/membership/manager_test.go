package membership

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devplatform/edir-lifecycle/internal/ldap"
	"github.com/devplatform/edir-lifecycle/internal/ldap/ldaptest"
)

const (
	userDN    = "cn=testuserj,ou=Employees,o=DA"
	macGroup  = "cn=Emp_GeneralMac_Users,ou=Resources,o=DA"
	wsGroup   = "cn=Emp_GeneralWS_Users,ou=Resources,o=DA"
	deptGroup = "cn=Biology_DEPARTMENT,ou=Departments,o=DA"
)

func setup(t *testing.T) (*Manager, *ldaptest.Directory, ldap.Session) {
	t.Helper()

	dir := ldaptest.New()
	dir.Put(userDN, ldap.Attribute{Name: "cn", Values: []string{"testuserj"}})
	for _, group := range []string{macGroup, wsGroup, deptGroup} {
		dir.Put(group, ldap.Attribute{Name: "objectClass", Values: []string{"groupOfNames"}})
	}

	s, err := dir.Bind(context.Background())
	require.NoError(t, err)
	dir.Reset()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewManager(logger), dir, s
}

func TestAddUserToGroups(t *testing.T) {
	m, dir, s := setup(t)
	groups := []string{macGroup, wsGroup, deptGroup}

	steps, err := m.AddUserToGroups(context.Background(), s, userDN, "testuserj", groups, macGroup)

	require.NoError(t, err)
	assert.Len(t, steps, 7)

	user := dir.Get(userDN)
	assert.Equal(t, groups, user.Values("securityEquals"))
	assert.Equal(t, groups, user.Values("groupMembership"))
	for _, group := range groups {
		g := dir.Get(group)
		assert.Equal(t, []string{userDN}, g.Values("member"), group)
		assert.Equal(t, []string{userDN}, g.Values("equivalentToMe"), group)
	}
	assert.Equal(t, []string{"testuserj"}, dir.Get(macGroup).Values("memberUid"))
	assert.Nil(t, dir.Get(wsGroup).Values("memberUid"))
	assert.Nil(t, dir.Get(deptGroup).Values("memberUid"))

	// each side of the pair is a single request
	for _, c := range dir.CallsOf("modify") {
		if c.DN == userDN {
			assert.Len(t, c.Changes, 2)
		}
	}
}

func TestAddUserToGroupsStopsAtFirstFailure(t *testing.T) {
	m, dir, s := setup(t)
	dir.Fail["modify "+wsGroup] = errors.New("insufficient access rights")

	steps, err := m.AddUserToGroups(context.Background(), s, userDN, "testuserj", []string{macGroup, wsGroup, deptGroup}, macGroup)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "group member "+wsGroup)
	require.Len(t, steps, 4)
	assert.False(t, steps[3].OK())

	assert.Equal(t, []string{macGroup, wsGroup}, dir.Get(userDN).Values("securityEquals"))
	assert.Nil(t, dir.Get(deptGroup).Values("member"))
	assert.Nil(t, dir.Get(macGroup).Values("memberUid"))
}

func TestRenameLegacyMember(t *testing.T) {
	m, dir, s := setup(t)
	dir.Put(macGroup, ldap.Attribute{Name: "memberUid", Values: []string{"other", "testuserj"}})

	_, err := m.RenameLegacyMember(context.Background(), s, macGroup, "testuserj", "testuserk")

	require.NoError(t, err)
	assert.Equal(t, []string{"other", "testuserk"}, dir.Get(macGroup).Values("memberUid"))
	assert.Len(t, dir.CallsOf("modify"), 2)
}

func TestRemoveLegacyMember(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		m, dir, s := setup(t)
		dir.Put(macGroup, ldap.Attribute{Name: "memberUid", Values: []string{"testuserj", "testuserjj"}})

		_, err := m.RemoveLegacyMember(context.Background(), s, macGroup, "testuserj")

		require.NoError(t, err)
		assert.Equal(t, []string{"testuserjj"}, dir.Get(macGroup).Values("memberUid"))

		modifies := dir.CallsOf("modify")
		require.Len(t, modifies, 1)
		assert.Equal(t, []ldap.Change{ldap.Delete("memberUid", "testuserj")}, modifies[0].Changes)
	})

	t.Run("absent", func(t *testing.T) {
		m, dir, s := setup(t)
		dir.Put(macGroup, ldap.Attribute{Name: "memberUid", Values: []string{"testuserjj"}})

		_, err := m.RemoveLegacyMember(context.Background(), s, macGroup, "testuserj")

		require.NoError(t, err)
		assert.Empty(t, dir.Mutations())
	})

	t.Run("search fails", func(t *testing.T) {
		m, dir, s := setup(t)
		dir.Fail["search "+macGroup] = errors.New("busy")

		steps, err := m.RemoveLegacyMember(context.Background(), s, macGroup, "testuserj")

		require.Error(t, err)
		require.Len(t, steps, 1)
		assert.False(t, steps[0].OK())
	})
}
