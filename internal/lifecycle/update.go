package lifecycle

import (
	"context"
	"fmt"

	"github.com/devplatform/edir-lifecycle/internal/ldap"
	"github.com/devplatform/edir-lifecycle/internal/models"
	"github.com/sirupsen/logrus"
)

// update optionally renames a user and then rewrites its profile attributes.
// Departmental groups are not touched when primO changes.
func (e *Engine) update(ctx context.Context, r *models.ActionRequest, log *logrus.Entry) (string, []models.Step, error) {
	if err := validate(models.ActionUpdate, r); err != nil {
		return "", nil, err
	}

	username := string(r.Username)
	newUsername := r.TargetUsername()
	renaming := username != newUsername
	category := e.classifier.Classify(username)

	if renaming && category != e.classifier.Classify(newUsername) {
		return "", nil, &PreconditionError{Reason: msgCrossCategory}
	}

	var steps []models.Step
	err := e.withSession(ctx, log, func(s ldap.Session) error {
		entry, err := e.lookup(ctx, s, username)
		if err != nil {
			return err
		}
		if entry == nil {
			return &PreconditionError{Reason: msgUserNotFound}
		}

		if renaming {
			if err := e.rename(ctx, s, category, username, newUsername, &steps, log); err != nil {
				return err
			}
		}

		return e.rewriteProfile(ctx, s, r, &steps, log)
	})
	if err != nil {
		return "", steps, err
	}

	log.WithField("newusername", newUsername).Info("User updated in eDir")
	return msgUserUpdated, steps, nil
}

// rename moves the entry to its new cn, swaps the legacy memberUid value and
// asks the operator to rename the home folder.
func (e *Engine) rename(ctx context.Context, s ldap.Session, category models.Category, username, newUsername string, steps *[]models.Step, log *logrus.Entry) error {
	taken, err := e.taken(ctx, s, newUsername)
	if err != nil {
		return err
	}
	if taken {
		return &PreconditionError{Reason: msgUsernameTaken}
	}

	dn := e.classifier.UserDN(username)
	if err := step(steps, "rename", msgRenameFailed, "rename "+dn, func() error {
		return s.Rename(ctx, dn, "cn="+newUsername, "")
	}); err != nil {
		return err
	}
	log.WithField("newusername", newUsername).Info("User renamed in eDir")

	// The entry already carries the new name, so the operator is told even
	// when the memberUid swap fails.
	legacySteps, err := e.groups.RenameLegacyMember(ctx, s, e.classifier.CategoryGroup(category), username, newUsername)
	*steps = append(*steps, legacySteps...)
	if err != nil {
		log.WithError(err).Warn("Could not swap memberUid value of renamed user")
	}

	e.notifier.Notify(ctx,
		fmt.Sprintf("eDir user renamed: %s to %s", dn, newUsername),
		"Need to rename home folder as well as ndsHomeDirectory attribute!")
	*steps = append(*steps, models.Step{Name: "notify rename"})
	return nil
}

// rewriteProfile removes stale role markers and replaces the profile. The
// businessCategory attribute holds unrelated values too, so the marker is
// deleted value by value instead of replacing the attribute.
func (e *Engine) rewriteProfile(ctx context.Context, s ldap.Session, r *models.ActionRequest, steps *[]models.Step, log *logrus.Entry) error {
	dn := e.classifier.UserDN(r.TargetUsername())

	var entries []*ldap.Entry
	if err := step(steps, "search", msgUpdateFailed, "read businessCategory "+dn, func() error {
		var err error
		entries, err = s.Search(ctx, dn, ldap.ScopeBase, "(objectClass=*)", []string{"businessCategory"})
		return err
	}); err != nil {
		return err
	}
	if len(entries) == 0 {
		return &DirectoryError{Op: "search", Detail: msgUpdateFailed, Err: fmt.Errorf("entry %s not found after rename", dn)}
	}

	for _, change := range e.builder.RoleMarkerDeletes(entries[0].Values("businessCategory")) {
		change := change
		if err := step(steps, "modify", msgUpdateFailed, "delete role marker "+change.Values[0], func() error {
			return s.Modify(ctx, dn, []ldap.Change{change})
		}); err != nil {
			return err
		}
	}

	if err := step(steps, "modify", msgUpdateFailed, "update profile "+dn, func() error {
		return s.Modify(ctx, dn, e.builder.UpdateChanges(r))
	}); err != nil {
		return err
	}

	log.WithField("dn", dn).Debug("Profile attributes replaced")
	return nil
}
