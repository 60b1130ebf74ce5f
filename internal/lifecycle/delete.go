package lifecycle

import (
	"context"

	"github.com/devplatform/edir-lifecycle/internal/ldap"
	"github.com/devplatform/edir-lifecycle/internal/models"
	"github.com/sirupsen/logrus"
)

// delete removes a disabled user from its active container. Entries already
// moved to an _Archive container are not found here.
func (e *Engine) delete(ctx context.Context, r *models.ActionRequest, log *logrus.Entry) (string, []models.Step, error) {
	if err := validate(models.ActionDelete, r); err != nil {
		return "", nil, err
	}

	username := string(r.Username)
	category := e.classifier.Classify(username)
	dn := e.classifier.UserDN(username)

	var steps []models.Step
	err := e.withSession(ctx, log, func(s ldap.Session) error {
		if _, err := e.requireDisabled(ctx, s, username); err != nil {
			return err
		}

		if err := step(&steps, "delete", msgDeleteFailed, "delete entry "+dn, func() error {
			return s.Delete(ctx, dn)
		}); err != nil {
			return err
		}
		log.WithField("dn", dn).Info("User deleted from eDir")

		// The entry is gone; a stale memberUid value is left for the operator.
		legacySteps, err := e.groups.RemoveLegacyMember(ctx, s, e.classifier.CategoryGroup(category), username)
		steps = append(steps, legacySteps...)
		if err != nil {
			log.WithError(err).Warn("Could not remove memberUid value of deleted user")
		}
		return nil
	})
	if err != nil {
		return "", steps, err
	}

	e.notifier.Notify(ctx, "eDir user deleted: "+dn, "Need to deprovision home folder!")
	steps = append(steps, models.Step{Name: "notify delete"})

	return msgUserDeleted, steps, nil
}
