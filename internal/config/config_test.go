package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()

	env := map[string]string{
		"LDAP_URL":                   "ldaps://edir.domain.edu:636",
		"LDAP_BASE_DN":               "o=DA",
		"LDAP_BIND_DN":               "cn=admin,o=DA",
		"LDAP_BIND_PASSWORD":         base64.StdEncoding.EncodeToString([]byte("s3cret")),
		"MAIL_DOMAIN":                "@domain.edu",
		"STUDENT_PATTERN":            "_",
		"GUEST_PATTERN":              "gst",
		"ROLE_MARKER":                "Aruba-User-Role",
		"STUDENT_SERVER":             "stufileserver",
		"EMPLOYEE_SERVER":            "empfileserver",
		"HOME_VOLUME_SUFFIX":         "_PERSONAL",
		"SERVER_CONTAINER":           "ou=Servers,o=DA",
		"STUDENT_CONTAINER":          "ou=Students,o=DA",
		"GUEST_CONTAINER":            "ou=Visitors,o=DA",
		"EMPLOYEE_CONTAINER":         "ou=Employees,o=DA",
		"DEPARTMENT_GROUP_SUFFIX":    "_DEPARTMENT",
		"DEPARTMENT_GROUP_CONTAINER": "ou=Departments,o=DA",
		"GENERAL_GROUP_CONTAINER":    "ou=Resources,o=DA",
		"STUDENT_GENERAL_GROUP":      "Stu_GeneralMac_Users",
		"GUEST_GENERAL_GROUP":        "Guest_GeneralMac_Users",
		"EMPLOYEE_GENERAL_GROUP":     "Emp_GeneralMac_Users",
		"EMPLOYEE_WORKSTATION_GROUP": "Emp_GeneralWS_Users",
		"NOTIFY_FROM":                "edir@server.domain.edu",
		"NOTIFY_TO":                  "operator@domain.edu",
		"SMTP_ADDR":                  "localhost:25",
		"STUDENT_PROVISION_URL":      "http://stufileserver.domain.edu/cgi-bin/provision",
		"EMPLOYEE_PROVISION_URL":     "http://empfileserver.domain.edu/cgi-bin/provision",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func TestLoad(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ldaps://edir.domain.edu:636", cfg.LDAPURL)
	assert.Equal(t, Base64Secret("s3cret"), cfg.LDAPBindPassword)
	assert.Equal(t, 10*time.Second, cfg.LDAPConnTimeout)
	assert.Equal(t, 4, cfg.GuestSuffixLength)
	assert.Equal(t, 30*time.Second, cfg.ProvisionTimeout)
	assert.Equal(t, "edir.log", cfg.LogFile)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Len(t, cfg.DepartmentGroups, 14)
	assert.Equal(t, "Classics", cfg.DepartmentGroups["Classical Studies"])
	assert.Equal(t, 20000, cfg.CategoryGroupGIDBase)
}

func TestLoadMissingRequired(t *testing.T) {
	setRequiredEnv(t)
	require.NoError(t, os.Unsetenv("EMPLOYEE_CONTAINER"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EMPLOYEE_CONTAINER")
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{name: "password not base64", key: "LDAP_BIND_PASSWORD", value: "not base64!", wantErr: "LDAP_BIND_PASSWORD"},
		{name: "negative guest suffix", key: "GUEST_SUFFIX_LENGTH", value: "-1", wantErr: "GUEST_SUFFIX_LENGTH"},
		{name: "empty student pattern", key: "STUDENT_PATTERN", value: " ", wantErr: "STUDENT_PATTERN"},
		{name: "unknown log level", key: "LOG_LEVEL", value: "trace", wantErr: "LOG_LEVEL"},
		{name: "container outside base", key: "STUDENT_CONTAINER", value: "ou=Students,o=Other", wantErr: "STUDENT_CONTAINER"},
		{name: "group container outside base", key: "GENERAL_GROUP_CONTAINER", value: "ou=Resources,o=DAX", wantErr: "GENERAL_GROUP_CONTAINER"},
		{name: "zero gid base", key: "CATEGORY_GROUP_GID_BASE", value: "0", wantErr: "CATEGORY_GROUP_GID_BASE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadDepartmentGroupsOverlay(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DEPARTMENT_GROUPS", "Biology:Biology,Art:Art")

	path := filepath.Join(t.TempDir(), "departments.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Art: Fine_Arts\nGeology: Geology\n"), 0o600))
	t.Setenv("DEPARTMENT_GROUPS_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"Biology": "Biology",
		"Art":     "Fine_Arts",
		"Geology": "Geology",
	}, cfg.DepartmentGroups)
}

func TestLoadDepartmentGroupsFileErrors(t *testing.T) {
	setRequiredEnv(t)

	t.Run("missing file", func(t *testing.T) {
		t.Setenv("DEPARTMENT_GROUPS_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

		_, err := Load()
		assert.ErrorContains(t, err, "failed to read department groups file")
	})

	t.Run("not a mapping", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "departments.yaml")
		require.NoError(t, os.WriteFile(path, []byte("- Biology\n- Art\n"), 0o600))
		t.Setenv("DEPARTMENT_GROUPS_FILE", path)

		_, err := Load()
		assert.ErrorContains(t, err, "failed to parse department groups file")
	})
}

func TestDNHelpers(t *testing.T) {
	cfg := &Config{
		GeneralGroupContainer:    "ou=Resources,o=DA",
		DepartmentGroupSuffix:    "_DEPARTMENT",
		DepartmentGroupContainer: "ou=Departments,o=DA",
		HomeVolumeSuffix:         "_PERSONAL",
		ServerContainer:          "ou=Servers,o=DA",
	}

	assert.Equal(t, "ou=_Archive,ou=Students,o=DA", ArchiveContainer("ou=Students,o=DA"))
	assert.Equal(t, "cn=Emp_GeneralWS_Users,ou=Resources,o=DA", cfg.GeneralGroupDN("Emp_GeneralWS_Users"))
	assert.Equal(t, "cn=Classics_DEPARTMENT,ou=Departments,o=DA", cfg.DepartmentGroupDN("Classics"))
	assert.Equal(t, "cn=empfileserver_PERSONAL,ou=Servers,o=DA", cfg.HomeVolumeDN("empfileserver"))
}

func TestUnderBase(t *testing.T) {
	cfg := &Config{LDAPBaseDN: "o=DA"}

	assert.True(t, cfg.UnderBase("o=DA"))
	assert.True(t, cfg.UnderBase("ou=Students,o=DA"))
	assert.True(t, cfg.UnderBase("OU=Students, O=da"))
	assert.False(t, cfg.UnderBase("ou=Students,o=DAX"))
	assert.False(t, cfg.UnderBase("ou=Students,o=Other"))
	assert.False(t, cfg.UnderBase(""))
	assert.False(t, (&Config{}).UnderBase("ou=Students,o=DA"))
}

func TestBase64SecretHidden(t *testing.T) {
	assert.Equal(t, "********", Base64Secret("s3cret").String())
}
