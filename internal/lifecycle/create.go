package lifecycle

import (
	"context"

	"github.com/devplatform/edir-lifecycle/internal/ldap"
	"github.com/devplatform/edir-lifecycle/internal/models"
	"github.com/sirupsen/logrus"
)

// create adds a new user, joins it to its groups and requests its storage
func (e *Engine) create(ctx context.Context, r *models.ActionRequest, log *logrus.Entry) (string, []models.Step, error) {
	if err := validate(models.ActionCreate, r); err != nil {
		return "", nil, err
	}

	username := string(r.Username)
	category := e.classifier.Classify(username)
	dn := e.classifier.UserDN(username)
	log = log.WithFields(logrus.Fields{"dn": dn, "category": category.String()})

	var steps []models.Step
	err := e.withSession(ctx, log, func(s ldap.Session) error {
		taken, err := e.taken(ctx, s, username)
		if err != nil {
			return err
		}
		if taken {
			return &PreconditionError{Reason: msgUsernameTaken}
		}

		attrs := e.builder.CreateAttributes(r, category)
		if err := step(&steps, "add", msgCreateFailed, "add entry "+dn, func() error {
			return s.Add(ctx, dn, attrs)
		}); err != nil {
			return err
		}
		log.Info("User added to eDir, now updating groups")

		groups := e.classifier.Groups(category, username, string(r.Department))
		groupSteps, err := e.groups.AddUserToGroups(ctx, s, dn, username, groups, e.classifier.CategoryGroup(category))
		steps = append(steps, groupSteps...)
		if err != nil {
			return &DirectoryError{Op: "modify", Detail: msgCreateFailed, Err: err}
		}
		return nil
	})
	if err != nil {
		return "", steps, err
	}

	// The entry exists from here on; storage problems only change the result.
	err = e.provisioner.Provision(ctx, category, username, string(r.Department))
	steps = append(steps, models.Step{Name: "provision storage", Err: err})
	if err != nil {
		return "", steps, &ProvisioningError{Err: err}
	}

	log.Info("User was added to eDir/groups and space was requested")
	return msgUserAdded, steps, nil
}
