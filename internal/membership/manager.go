// Package membership keeps eDirectory group membership consistent across its
// two representations: member/equivalentToMe on the group with
// securityEquals/groupMembership on the user, plus the legacy memberUid
// values the Mac login mechanism still reads from the category group.
package membership

import (
	"context"
	"fmt"

	"github.com/devplatform/edir-lifecycle/internal/ldap"
	"github.com/devplatform/edir-lifecycle/internal/models"
	"github.com/sirupsen/logrus"
)

const legacyAttr = "memberUid"

// Manager applies group membership mutations through a directory session.
// Sequences stop at the first failed mutation; earlier mutations stay applied.
type Manager struct {
	logger *logrus.Logger
}

// NewManager creates a membership manager
func NewManager(logger *logrus.Logger) *Manager {
	return &Manager{logger: logger}
}

// run executes one mutation and records it as a step
func run(steps []models.Step, name string, fn func() error) ([]models.Step, error) {
	err := fn()
	steps = append(steps, models.Step{Name: name, Err: err})
	if err != nil {
		return steps, fmt.Errorf("%s: %w", name, err)
	}
	return steps, nil
}

// AddUserToGroups adds the user to every group in order, user side first,
// then records the bare username in the category group's memberUid.
func (m *Manager) AddUserToGroups(ctx context.Context, s ldap.Session, userDN, username string, groups []string, categoryGroup string) ([]models.Step, error) {
	var steps []models.Step
	var err error

	for _, group := range groups {
		steps, err = run(steps, "user security equivalence "+group, func() error {
			return s.Modify(ctx, userDN, []ldap.Change{
				ldap.Add("securityEquals", group),
				ldap.Add("groupMembership", group),
			})
		})
		if err != nil {
			return steps, err
		}

		steps, err = run(steps, "group member "+group, func() error {
			return s.Modify(ctx, group, []ldap.Change{
				ldap.Add("member", userDN),
				ldap.Add("equivalentToMe", userDN),
			})
		})
		if err != nil {
			return steps, err
		}

		m.logger.WithFields(logrus.Fields{
			"dn":    userDN,
			"group": group,
		}).Info("User added to eDir group")
	}

	steps, err = run(steps, "add memberUid "+categoryGroup, func() error {
		return s.Modify(ctx, categoryGroup, []ldap.Change{ldap.Add(legacyAttr, username)})
	})
	if err != nil {
		return steps, err
	}

	m.logger.WithFields(logrus.Fields{
		"username": username,
		"group":    categoryGroup,
	}).Info("User added to memberUid attribute of eDir group")
	return steps, nil
}

// RenameLegacyMember adds the new username to the category group's memberUid
// and removes the old one.
func (m *Manager) RenameLegacyMember(ctx context.Context, s ldap.Session, categoryGroup, oldUsername, newUsername string) ([]models.Step, error) {
	steps, err := run(nil, "add memberUid "+categoryGroup, func() error {
		return s.Modify(ctx, categoryGroup, []ldap.Change{ldap.Add(legacyAttr, newUsername)})
	})
	if err != nil {
		return steps, err
	}

	m.logger.WithFields(logrus.Fields{
		"username": newUsername,
		"group":    categoryGroup,
	}).Info("User added to memberUid attribute of eDir group")

	more, err := m.RemoveLegacyMember(ctx, s, categoryGroup, oldUsername)
	return append(steps, more...), err
}

// RemoveLegacyMember deletes the memberUid value equal to username from the
// category group. A missing value is not an error.
func (m *Manager) RemoveLegacyMember(ctx context.Context, s ldap.Session, categoryGroup, username string) ([]models.Step, error) {
	var entries []*ldap.Entry
	steps, err := run(nil, "read memberUid "+categoryGroup, func() error {
		var err error
		entries, err = s.Search(ctx, categoryGroup, ldap.ScopeBase, "(objectClass=*)", []string{legacyAttr})
		return err
	})
	if err != nil {
		return steps, err
	}

	for _, entry := range entries {
		for _, member := range entry.Values(legacyAttr) {
			if member != username {
				continue
			}
			steps, err = run(steps, "delete memberUid "+categoryGroup, func() error {
				return s.Modify(ctx, categoryGroup, []ldap.Change{ldap.Delete(legacyAttr, member)})
			})
			if err != nil {
				return steps, err
			}
			m.logger.WithFields(logrus.Fields{
				"username": member,
				"group":    categoryGroup,
			}).Info("Deleted old memberUid value from group")
			return steps, nil
		}
	}

	m.logger.WithFields(logrus.Fields{
		"username": username,
		"group":    categoryGroup,
	}).Debug("No memberUid value to remove")
	return steps, nil
}
