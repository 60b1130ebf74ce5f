package bootstrap

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devplatform/edir-lifecycle/internal/config"
	"github.com/devplatform/edir-lifecycle/internal/ldap"
	"github.com/devplatform/edir-lifecycle/internal/ldap/ldaptest"
)

func newBootstrapper(dir ldap.Directory) *Bootstrapper {
	cfg := &config.Config{
		StudentContainer:         "ou=Students,o=DA",
		GuestContainer:           "ou=Visitors,o=DA",
		EmployeeContainer:        "ou=Employees,o=DA",
		DepartmentGroupSuffix:    "_DEPARTMENT",
		DepartmentGroupContainer: "ou=Departments,o=DA",
		GeneralGroupContainer:    "ou=Resources,o=DA",
		StudentGeneralGroup:      "Stu_GeneralMac_Users",
		GuestGeneralGroup:        "Guest_GeneralMac_Users",
		EmployeeGeneralGroup:     "Emp_GeneralMac_Users",
		EmployeeWorkstationGroup: "Emp_GeneralWS_Users",
		CategoryGroupGIDBase:     20000,
		DepartmentGroups: map[string]string{
			"Classical Studies": "Classics",
			"Biology":           "Biology",
			"Bio Sciences":      "Biology",
		},
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(cfg, dir, logger)
}

func TestLayout(t *testing.T) {
	b := newBootstrapper(ldaptest.New())

	assert.Equal(t, []Target{
		{DN: "ou=Students,o=DA", Kind: KindContainer},
		{DN: "ou=_Archive,ou=Students,o=DA", Kind: KindContainer},
		{DN: "ou=Employees,o=DA", Kind: KindContainer},
		{DN: "ou=_Archive,ou=Employees,o=DA", Kind: KindContainer},
		{DN: "ou=Visitors,o=DA", Kind: KindContainer},
		{DN: "ou=Resources,o=DA", Kind: KindContainer},
		{DN: "ou=Departments,o=DA", Kind: KindContainer},
		{DN: "cn=Stu_GeneralMac_Users,ou=Resources,o=DA", Kind: KindGroup, GIDNumber: 20001},
		{DN: "cn=Guest_GeneralMac_Users,ou=Resources,o=DA", Kind: KindGroup, GIDNumber: 20002},
		{DN: "cn=Emp_GeneralMac_Users,ou=Resources,o=DA", Kind: KindGroup, GIDNumber: 20003},
		{DN: "cn=Emp_GeneralWS_Users,ou=Resources,o=DA", Kind: KindGroup},
		{DN: "cn=Biology_DEPARTMENT,ou=Departments,o=DA", Kind: KindGroup},
		{DN: "cn=Classics_DEPARTMENT,ou=Departments,o=DA", Kind: KindGroup},
	}, b.Layout())
}

func TestEnsureCheckOnly(t *testing.T) {
	dir := ldaptest.New()
	dir.Put("ou=Students,o=DA")
	dir.Put("ou=Employees,o=DA")
	b := newBootstrapper(dir)

	report, err := b.Ensure(context.Background(), false)

	require.NoError(t, err)
	assert.Equal(t, 2, report.Count(StatusExists))
	assert.Equal(t, 11, report.Count(StatusMissing))
	assert.Empty(t, dir.Mutations())
}

func TestEnsureCreatesMissing(t *testing.T) {
	dir := ldaptest.New()
	dir.Put("ou=Students,o=DA")
	b := newBootstrapper(dir)

	report, err := b.Ensure(context.Background(), true)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(StatusExists))
	assert.Equal(t, 12, report.Count(StatusCreated))

	archive := dir.Get("ou=_Archive,ou=Employees,o=DA")
	require.NotNil(t, archive)
	assert.Equal(t, []string{"top", "organizationalUnit"}, archive.Values("objectClass"))
	assert.Equal(t, []string{"_Archive"}, archive.Values("ou"))

	group := dir.Get("cn=Classics_DEPARTMENT,ou=Departments,o=DA")
	require.NotNil(t, group)
	assert.Equal(t, []string{"Classics_DEPARTMENT"}, group.Values("cn"))
	assert.Equal(t, []string{"top", "groupOfNames"}, group.Values("objectClass"))

	category := dir.Get("cn=Emp_GeneralMac_Users,ou=Resources,o=DA")
	require.NotNil(t, category)
	assert.Equal(t, []string{"top", "groupOfNames", "posixGroup"}, category.Values("objectClass"))
	assert.Equal(t, []string{"20003"}, category.Values("gidNumber"))

	// a second run finds everything in place
	again, err := b.Ensure(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 13, again.Count(StatusExists))
}

func TestEnsureContinuesAfterFailure(t *testing.T) {
	dir := ldaptest.New()
	dir.Fail["add ou=Visitors,o=DA"] = errors.New("insufficient access rights")
	b := newBootstrapper(dir)

	report, err := b.Ensure(context.Background(), true)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(StatusFailed))
	assert.Equal(t, 12, report.Count(StatusCreated))
	assert.Nil(t, dir.Get("ou=Visitors,o=DA"))
	assert.NotNil(t, dir.Get("cn=Guest_GeneralMac_Users,ou=Resources,o=DA"))
}

func TestEnsureWarnsAboutCategoryGroupWithoutPosixGroup(t *testing.T) {
	dir := ldaptest.New()
	dir.Put("cn=Stu_GeneralMac_Users,ou=Resources,o=DA",
		ldap.Attribute{Name: "objectClass", Values: []string{"top", "groupOfNames", "posixGroup"}})
	dir.Put("cn=Emp_GeneralMac_Users,ou=Resources,o=DA",
		ldap.Attribute{Name: "objectClass", Values: []string{"top", "groupOfNames"}})
	dir.Put("cn=Emp_GeneralWS_Users,ou=Resources,o=DA",
		ldap.Attribute{Name: "objectClass", Values: []string{"top", "groupOfNames"}})
	b := newBootstrapper(dir)
	hook := test.NewLocal(b.logger)

	_, err := b.Ensure(context.Background(), false)
	require.NoError(t, err)

	var warned []string
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Message == "Category group is not a posixGroup, memberUid updates will fail" {
			warned = append(warned, entry.Data["dn"].(string))
		}
	}
	assert.Equal(t, []string{"cn=Emp_GeneralMac_Users,ou=Resources,o=DA"}, warned)
}

func TestEnsureBindFailure(t *testing.T) {
	dir := ldaptest.New()
	dir.BindErr = errors.New("connection refused")

	_, err := newBootstrapper(dir).Ensure(context.Background(), true)

	assert.ErrorContains(t, err, "failed to bind")
}

func TestAttributesRejectsUnsupportedRDN(t *testing.T) {
	_, err := attributes(Target{DN: "o=DA", Kind: KindContainer})
	assert.Error(t, err)

	_, err = attributes(Target{DN: "ou=Groups,o=DA", Kind: KindGroup})
	assert.Error(t, err)
}

func TestAttributesCategoryGroup(t *testing.T) {
	attrs, err := attributes(Target{DN: "cn=Guest_GeneralMac_Users,ou=Resources,o=DA", Kind: KindGroup, GIDNumber: 20002})
	require.NoError(t, err)

	assert.Equal(t, []ldap.Attribute{
		{Name: "objectClass", Values: []string{"top", "groupOfNames", "posixGroup"}},
		{Name: "cn", Values: []string{"Guest_GeneralMac_Users"}},
		{Name: "gidNumber", Values: []string{"20002"}},
	}, attrs)
}
