package identity

import (
	"fmt"
	"strings"

	"github.com/devplatform/edir-lifecycle/internal/config"
	"github.com/devplatform/edir-lifecycle/internal/models"
	"github.com/sirupsen/logrus"
)

// Classifier derives a user's category from the username and everything that
// hangs off the category: containers, groups and the home directory server.
type Classifier struct {
	config *config.Config
	logger *logrus.Logger
}

// NewClassifier creates a classifier over the run configuration
func NewClassifier(cfg *config.Config, logger *logrus.Logger) *Classifier {
	return &Classifier{config: cfg, logger: logger}
}

// Classify maps a username onto a category. Student names contain the
// student pattern; guest names are the guest pattern followed by exactly
// GuestSuffixLength characters; everything else is an employee.
func (c *Classifier) Classify(username string) models.Category {
	if c.config.StudentPattern != "" && strings.Contains(username, c.config.StudentPattern) {
		return models.CategoryStudent
	}
	n := c.config.GuestSuffixLength
	if len(username) >= n && username[:len(username)-n] == c.config.GuestPattern {
		return models.CategoryGuest
	}
	return models.CategoryEmployee
}

// Container returns the container DN users of the category live in
func (c *Classifier) Container(category models.Category) string {
	switch category {
	case models.CategoryStudent:
		return c.config.StudentContainer
	case models.CategoryGuest:
		return c.config.GuestContainer
	default:
		return c.config.EmployeeContainer
	}
}

// ArchiveContainer returns the container disabled users of the category are moved to
func (c *Classifier) ArchiveContainer(category models.Category) string {
	return config.ArchiveContainer(c.Container(category))
}

// UserDN returns the DN of a username's entry in its category container.
// The username is not escaped; names needing escaping are rejected before
// any action reaches the directory.
func (c *Classifier) UserDN(username string) string {
	return fmt.Sprintf("cn=%s,%s", username, c.Container(c.Classify(username)))
}

// CategoryGroupName returns the cn of the category's GeneralMac group
func (c *Classifier) CategoryGroupName(category models.Category) string {
	switch category {
	case models.CategoryStudent:
		return c.config.StudentGeneralGroup
	case models.CategoryGuest:
		return c.config.GuestGeneralGroup
	default:
		return c.config.EmployeeGeneralGroup
	}
}

// CategoryGroup returns the DN of the category's GeneralMac group. It is the
// group that carries the legacy memberUid values.
func (c *Classifier) CategoryGroup(category models.Category) string {
	return c.config.GeneralGroupDN(c.CategoryGroupName(category))
}

// DepartmentGroup looks up the departmental group for a department name
func (c *Classifier) DepartmentGroup(department string) (string, bool) {
	group, ok := c.config.DepartmentGroups[department]
	if !ok || group == "" {
		return "", false
	}
	return c.config.DepartmentGroupDN(group), true
}

// Groups returns the group DNs a new user of the category joins, category group first
func (c *Classifier) Groups(category models.Category, username, department string) []string {
	groups := []string{c.CategoryGroup(category)}
	if category != models.CategoryEmployee {
		return groups
	}

	groups = append(groups, c.config.GeneralGroupDN(c.config.EmployeeWorkstationGroup))
	if dept, ok := c.DepartmentGroup(department); ok {
		groups = append(groups, dept)
	} else {
		// Unknown departments are left for the operator to sort out.
		c.logger.WithFields(logrus.Fields{
			"username":   username,
			"department": department,
		}).Warn("Unable to find departmental group for the user")
	}
	return groups
}

// HomeServer returns the file server holding home directories for the
// category, or "" when the category gets no home directory.
func (c *Classifier) HomeServer(category models.Category) string {
	switch category {
	case models.CategoryStudent:
		return c.config.StudentServer
	case models.CategoryEmployee:
		return c.config.EmployeeServer
	default:
		return ""
	}
}
