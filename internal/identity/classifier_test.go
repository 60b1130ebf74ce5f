package identity

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"github.com/devplatform/edir-lifecycle/internal/config"
	"github.com/devplatform/edir-lifecycle/internal/models"
)

func newClassifier() (*Classifier, *test.Hook) {
	cfg := &config.Config{
		StudentPattern:           "_",
		GuestPattern:             "gst",
		GuestSuffixLength:        4,
		StudentServer:            "stufileserver",
		EmployeeServer:           "empfileserver",
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
		DepartmentGroups:         map[string]string{"Biology": "Biology", "Classical Studies": "Classics"},
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	hook := test.NewLocal(logger)
	return NewClassifier(cfg, logger), hook
}

func TestClassify(t *testing.T) {
	c, _ := newClassifier()

	tests := []struct {
		username string
		want     models.Category
	}{
		{"smith_j", models.CategoryStudent},
		{"gst0001", models.CategoryGuest},
		{"gstabcd", models.CategoryGuest},
		{"gst_0001", models.CategoryStudent},
		{"gst001", models.CategoryEmployee},
		{"gst00001", models.CategoryEmployee},
		{"xgst0001", models.CategoryEmployee},
		{"gst", models.CategoryEmployee},
		{"testuserj", models.CategoryEmployee},
	}

	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.username))
		})
	}
}

func TestUserDNAndContainers(t *testing.T) {
	c, _ := newClassifier()

	assert.Equal(t, "cn=smith_j,ou=Students,o=DA", c.UserDN("smith_j"))
	assert.Equal(t, "cn=gst0001,ou=Visitors,o=DA", c.UserDN("gst0001"))
	assert.Equal(t, "cn=testuserj,ou=Employees,o=DA", c.UserDN("testuserj"))

	assert.Equal(t, "ou=_Archive,ou=Students,o=DA", c.ArchiveContainer(models.CategoryStudent))
	assert.Equal(t, "ou=_Archive,ou=Employees,o=DA", c.ArchiveContainer(models.CategoryEmployee))
}

func TestGroups(t *testing.T) {
	t.Run("student", func(t *testing.T) {
		c, _ := newClassifier()
		assert.Equal(t, []string{"cn=Stu_GeneralMac_Users,ou=Resources,o=DA"},
			c.Groups(models.CategoryStudent, "smith_j", "Biology"))
	})

	t.Run("guest", func(t *testing.T) {
		c, _ := newClassifier()
		assert.Equal(t, []string{"cn=Guest_GeneralMac_Users,ou=Resources,o=DA"},
			c.Groups(models.CategoryGuest, "gst0001", "Biology"))
	})

	t.Run("employee with department", func(t *testing.T) {
		c, hook := newClassifier()
		assert.Equal(t, []string{
			"cn=Emp_GeneralMac_Users,ou=Resources,o=DA",
			"cn=Emp_GeneralWS_Users,ou=Resources,o=DA",
			"cn=Classics_DEPARTMENT,ou=Departments,o=DA",
		}, c.Groups(models.CategoryEmployee, "testuserj", "Classical Studies"))
		assert.Empty(t, hook.AllEntries())
	})

	t.Run("employee with unknown department", func(t *testing.T) {
		c, hook := newClassifier()
		assert.Equal(t, []string{
			"cn=Emp_GeneralMac_Users,ou=Resources,o=DA",
			"cn=Emp_GeneralWS_Users,ou=Resources,o=DA",
		}, c.Groups(models.CategoryEmployee, "testuserj", "Astrology"))

		entry := hook.LastEntry()
		if assert.NotNil(t, entry) {
			assert.Equal(t, logrus.WarnLevel, entry.Level)
			assert.Equal(t, "Astrology", entry.Data["department"])
		}
	})
}

func TestHomeServer(t *testing.T) {
	c, _ := newClassifier()

	assert.Equal(t, "stufileserver", c.HomeServer(models.CategoryStudent))
	assert.Equal(t, "empfileserver", c.HomeServer(models.CategoryEmployee))
	assert.Empty(t, c.HomeServer(models.CategoryGuest))
}
