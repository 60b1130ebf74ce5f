// Package lifecycle runs the create/update/archive/delete state machine for
// eDirectory user accounts. Each action is validated, checked against the
// directory, applied as a sequence of independent mutations and classified
// into exactly one outcome.
package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/devplatform/edir-lifecycle/internal/config"
	"github.com/devplatform/edir-lifecycle/internal/identity"
	"github.com/devplatform/edir-lifecycle/internal/ldap"
	"github.com/devplatform/edir-lifecycle/internal/membership"
	"github.com/devplatform/edir-lifecycle/internal/models"
	"github.com/devplatform/edir-lifecycle/internal/notify"
	"github.com/devplatform/edir-lifecycle/internal/provisioning"
	"github.com/devplatform/edir-lifecycle/internal/records"
	"github.com/sirupsen/logrus"
)

// Engine processes batch actions one at a time
type Engine struct {
	directory   ldap.Directory
	classifier  *identity.Classifier
	builder     *records.Builder
	groups      *membership.Manager
	notifier    notify.Notifier
	provisioner provisioning.Provisioner
	logger      *logrus.Logger
	runID       string
}

// NewEngine wires an engine from its collaborators
func NewEngine(cfg *config.Config, directory ldap.Directory, notifier notify.Notifier, provisioner provisioning.Provisioner, logger *logrus.Logger) *Engine {
	classifier := identity.NewClassifier(cfg, logger)
	return &Engine{
		directory:   directory,
		classifier:  classifier,
		builder:     records.NewBuilder(cfg, classifier),
		groups:      membership.NewManager(logger),
		notifier:    notifier,
		provisioner: provisioner,
		logger:      logger,
	}
}

// WithRunID tags every log line of the engine with a run identifier
func (e *Engine) WithRunID(id string) *Engine {
	e.runID = id
	return e
}

// Run processes the requests in input order and hands every outcome to sink
// before starting the next action. Cancelling ctx stops the batch between
// actions; the action in flight always completes.
func (e *Engine) Run(ctx context.Context, requests []models.ActionRequest, sink func(*models.Outcome) error) error {
	for i := range requests {
		if err := ctx.Err(); err != nil {
			e.logger.WithFields(logrus.Fields{
				"run_id":    e.runID,
				"remaining": len(requests) - i,
			}).Warn("Batch interrupted")
			return err
		}

		outcome := e.Process(context.WithoutCancel(ctx), &requests[i])
		if err := sink(outcome); err != nil {
			return fmt.Errorf("failed to record outcome for %s: %w", outcome.Username, err)
		}
	}
	return nil
}

// Process runs a single action through validation, precondition checks,
// mutation and outcome classification.
func (e *Engine) Process(ctx context.Context, r *models.ActionRequest) *models.Outcome {
	action := models.ParseAction(r.Action)
	log := e.logger.WithFields(logrus.Fields{
		"run_id":   e.runID,
		"action":   r.Action,
		"username": string(r.Username),
	})

	var (
		detail string
		steps  []models.Step
		err    error
	)

	switch action {
	case models.ActionCreate:
		detail, steps, err = e.create(ctx, r, log)
	case models.ActionUpdate:
		detail, steps, err = e.update(ctx, r, log)
	case models.ActionArchive:
		detail, steps, err = e.archive(ctx, r, log)
	case models.ActionDelete:
		detail, steps, err = e.delete(ctx, r, log)
	default:
		err = &UnrecognizedActionError{Action: r.Action}
	}

	outcome := &models.Outcome{
		Action:   r.Action,
		Username: string(r.Username),
		Steps:    steps,
	}

	for _, step := range steps {
		if step.OK() {
			log.WithField("step", step.Name).Debug("Step applied")
		} else {
			log.WithField("step", step.Name).WithError(step.Err).Error("Step failed")
		}
	}

	if err != nil {
		outcome.Kind, outcome.Detail = classify(err)
		log.WithError(err).WithField("kind", outcome.Kind).Error(outcome.Result())
		return outcome
	}

	outcome.Success = true
	outcome.Kind = KindSuccess
	outcome.Detail = detail
	log.Info(outcome.Result())
	return outcome
}

// withSession binds a session for the duration of fn
func (e *Engine) withSession(ctx context.Context, log *logrus.Entry, fn func(s ldap.Session) error) error {
	s, err := e.directory.Bind(ctx)
	if err != nil {
		return &DirectoryError{Op: "bind", Detail: msgBindFailed, Err: err}
	}
	defer func() {
		if err := s.Unbind(); err != nil {
			log.WithError(err).Warn("Failed to unbind from eDir")
		}
	}()

	return fn(s)
}

// taken reports whether any entry named username exists under the
// category container, archived entries included.
func (e *Engine) taken(ctx context.Context, s ldap.Session, username string) (bool, error) {
	base := e.classifier.Container(e.classifier.Classify(username))
	filter := fmt.Sprintf("(cn=%s)", ldap.EscapeFilter(username))

	entries, err := s.Search(ctx, base, ldap.ScopeSubtree, filter, []string{"cn"})
	if err != nil {
		return false, &DirectoryError{Op: "search", Detail: msgSearchFailed, Err: err}
	}
	return len(entries) > 0, nil
}

// lookup reads the active entry of username, or returns nil when there is none
func (e *Engine) lookup(ctx context.Context, s ldap.Session, username string) (*ldap.Entry, error) {
	dn := e.classifier.UserDN(username)

	entries, err := s.Search(ctx, dn, ldap.ScopeBase, "(objectClass=*)", []string{"cn", "loginDisabled", "businessCategory"})
	if err != nil {
		return nil, &DirectoryError{Op: "search", Detail: msgSearchFailed, Err: err}
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0], nil
}

// requireDisabled looks up username and checks it exists and is disabled
func (e *Engine) requireDisabled(ctx context.Context, s ldap.Session, username string) (*ldap.Entry, error) {
	entry, err := e.lookup(ctx, s, username)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, &PreconditionError{Reason: msgUserNotFound}
	}
	if !disabled(entry) {
		return nil, &PreconditionError{Reason: msgNotDisabled}
	}
	return entry, nil
}

func disabled(entry *ldap.Entry) bool {
	return strings.EqualFold(strings.TrimSpace(entry.Value("loginDisabled")), "TRUE")
}

// step runs one mutation, records it, and wraps a failure as a DirectoryError
func step(steps *[]models.Step, op, detail, name string, fn func() error) error {
	err := fn()
	*steps = append(*steps, models.Step{Name: name, Err: err})
	if err != nil {
		return &DirectoryError{Op: op, Detail: detail, Err: err}
	}
	return nil
}
