package prometheus

import (
	"context"
	"time"

	"github.com/devplatform/edir-lifecycle/internal/ldap"
)

// DirectoryCollector wraps an ldap.Directory and records metrics for every
// session operation
type DirectoryCollector struct {
	next ldap.Directory
}

// NewDirectoryCollector creates a new instrumented wrapper around a directory
func NewDirectoryCollector(next ldap.Directory) *DirectoryCollector {
	return &DirectoryCollector{next: next}
}

// recordOperation records duration and count for an operation
func recordOperation(operation string, start time.Time, err error) {
	success := "true"
	if err != nil {
		success = "false"
	}

	OperationDuration.WithLabelValues(operation, success).Observe(time.Since(start).Seconds())
	OperationsTotal.WithLabelValues(operation, success).Inc()
}

// Bind opens an instrumented session
func (c *DirectoryCollector) Bind(ctx context.Context) (ldap.Session, error) {
	start := time.Now()
	s, err := c.next.Bind(ctx)
	recordOperation("bind", start, err)
	if err != nil {
		return nil, err
	}

	SessionsOpened.Inc()
	return &sessionCollector{next: s}, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// SESSION OPERATIONS
// ═══════════════════════════════════════════════════════════════════════════

type sessionCollector struct {
	next ldap.Session
}

func (c *sessionCollector) Search(ctx context.Context, base string, scope ldap.Scope, filter string, attrs []string) ([]*ldap.Entry, error) {
	start := time.Now()
	entries, err := c.next.Search(ctx, base, scope, filter, attrs)
	recordOperation("search", start, err)
	return entries, err
}

func (c *sessionCollector) Add(ctx context.Context, dn string, attrs []ldap.Attribute) error {
	start := time.Now()
	err := c.next.Add(ctx, dn, attrs)
	recordOperation("add", start, err)
	return err
}

func (c *sessionCollector) Modify(ctx context.Context, dn string, changes []ldap.Change) error {
	start := time.Now()
	err := c.next.Modify(ctx, dn, changes)
	recordOperation("modify", start, err)

	if err == nil {
		for _, change := range changes {
			switch change.Attr {
			case "member":
				GroupMembershipsChanged.WithLabelValues("member", change.Op.String()).Inc()
			case "memberUid":
				GroupMembershipsChanged.WithLabelValues("memberUid", change.Op.String()).Inc()
			}
		}
	}

	return err
}

func (c *sessionCollector) Rename(ctx context.Context, dn, newRDN, newSuperior string) error {
	start := time.Now()
	err := c.next.Rename(ctx, dn, newRDN, newSuperior)
	recordOperation("rename", start, err)
	return err
}

func (c *sessionCollector) Delete(ctx context.Context, dn string) error {
	start := time.Now()
	err := c.next.Delete(ctx, dn)
	recordOperation("delete", start, err)
	return err
}

func (c *sessionCollector) Unbind() error {
	start := time.Now()
	err := c.next.Unbind()
	recordOperation("unbind", start, err)
	return err
}
