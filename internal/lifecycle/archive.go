package lifecycle

import (
	"context"

	"github.com/devplatform/edir-lifecycle/internal/ldap"
	"github.com/devplatform/edir-lifecycle/internal/models"
	"github.com/sirupsen/logrus"
)

// archive moves a disabled user into its category's _Archive container.
// Guests are never archived.
func (e *Engine) archive(ctx context.Context, r *models.ActionRequest, log *logrus.Entry) (string, []models.Step, error) {
	if err := validate(models.ActionArchive, r); err != nil {
		return "", nil, err
	}

	username := string(r.Username)
	category := e.classifier.Classify(username)
	if category == models.CategoryGuest {
		return "", nil, &PreconditionError{Reason: msgGuestArchive}
	}

	var steps []models.Step
	err := e.withSession(ctx, log, func(s ldap.Session) error {
		if _, err := e.requireDisabled(ctx, s, username); err != nil {
			return err
		}

		dn := e.classifier.UserDN(username)
		container := e.classifier.ArchiveContainer(category)
		return step(&steps, "rename", msgMoveFailed, "move "+dn+" to "+container, func() error {
			return s.Rename(ctx, dn, "cn="+username, container)
		})
	})
	if err != nil {
		return "", steps, err
	}

	log.Info("User archived in eDir")
	return msgUserArchived, steps, nil
}
