// Package bootstrap makes sure the containers and groups the lifecycle
// actions write to exist before the first batch runs against a directory.
package bootstrap

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/devplatform/edir-lifecycle/internal/config"
	"github.com/devplatform/edir-lifecycle/internal/ldap"
	"github.com/sirupsen/logrus"
)

// Kind is the type of object a target describes
type Kind string

const (
	KindContainer Kind = "container"
	KindGroup     Kind = "group"
)

// Status is what happened to a target
type Status string

const (
	StatusExists  Status = "exists"
	StatusMissing Status = "missing"
	StatusCreated Status = "created"
	StatusFailed  Status = "failed"
)

// Target is one entry of the directory layout. GIDNumber is set on the
// category groups, which are created as posixGroups so they can carry the
// legacy memberUid values.
type Target struct {
	DN        string
	Kind      Kind
	GIDNumber int
}

// Result is the status of one target after Ensure
type Result struct {
	Target
	Status Status
	Err    error
}

// Report collects the results of a run in layout order
type Report struct {
	Results []Result
}

// Count returns the number of results with the given status
func (r *Report) Count(status Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Bootstrapper checks and creates the directory layout
type Bootstrapper struct {
	config    *config.Config
	directory ldap.Directory
	logger    *logrus.Logger
}

// New creates a bootstrapper
func New(cfg *config.Config, directory ldap.Directory, logger *logrus.Logger) *Bootstrapper {
	return &Bootstrapper{config: cfg, directory: directory, logger: logger}
}

// Layout lists every container and group the actions use, parents before
// children and without duplicates. Guests are never archived, so the guest
// container gets no _Archive child.
func (b *Bootstrapper) Layout() []Target {
	c := b.config
	var targets []Target
	seen := make(map[string]bool)
	add := func(kind Kind, dn string, gid int) {
		key := strings.ToLower(dn)
		if dn == "" || seen[key] {
			return
		}
		seen[key] = true
		targets = append(targets, Target{DN: dn, Kind: kind, GIDNumber: gid})
	}

	add(KindContainer, c.StudentContainer, 0)
	add(KindContainer, config.ArchiveContainer(c.StudentContainer), 0)
	add(KindContainer, c.EmployeeContainer, 0)
	add(KindContainer, config.ArchiveContainer(c.EmployeeContainer), 0)
	add(KindContainer, c.GuestContainer, 0)
	add(KindContainer, c.GeneralGroupContainer, 0)
	add(KindContainer, c.DepartmentGroupContainer, 0)

	// category groups take consecutive gidNumbers above the base
	for i, cn := range []string{
		c.StudentGeneralGroup,
		c.GuestGeneralGroup,
		c.EmployeeGeneralGroup,
	} {
		add(KindGroup, c.GeneralGroupDN(cn), c.CategoryGroupGIDBase+i+1)
	}
	add(KindGroup, c.GeneralGroupDN(c.EmployeeWorkstationGroup), 0)

	departments := make([]string, 0, len(c.DepartmentGroups))
	for _, group := range c.DepartmentGroups {
		if group != "" {
			departments = append(departments, group)
		}
	}
	sort.Strings(departments)
	for _, group := range departments {
		add(KindGroup, c.DepartmentGroupDN(group), 0)
	}

	return targets
}

// Ensure checks every target of the layout. With create set, missing
// targets are added; otherwise they are only reported. A target that cannot
// be created is recorded and the run continues.
func (b *Bootstrapper) Ensure(ctx context.Context, create bool) (*Report, error) {
	s, err := b.directory.Bind(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to bind: %w", err)
	}
	defer func() {
		if err := s.Unbind(); err != nil {
			b.logger.WithError(err).Warn("Failed to unbind from eDir")
		}
	}()

	report := &Report{}
	for _, target := range b.Layout() {
		log := b.logger.WithFields(logrus.Fields{
			"dn":   target.DN,
			"kind": target.Kind,
		})

		entries, err := s.Search(ctx, target.DN, ldap.ScopeBase, "(objectClass=*)", []string{"objectClass"})
		if err != nil {
			log.WithError(err).Error("Failed to look up directory object")
			report.Results = append(report.Results, Result{Target: target, Status: StatusFailed, Err: err})
			continue
		}
		if len(entries) > 0 {
			if target.GIDNumber != 0 && !hasObjectClass(entries[0], "posixGroup") {
				log.Warn("Category group is not a posixGroup, memberUid updates will fail")
			}
			log.Debug("Directory object already exists")
			report.Results = append(report.Results, Result{Target: target, Status: StatusExists})
			continue
		}
		if !create {
			log.Warn("Directory object is missing")
			report.Results = append(report.Results, Result{Target: target, Status: StatusMissing})
			continue
		}

		attrs, err := attributes(target)
		if err == nil {
			err = s.Add(ctx, target.DN, attrs)
		}
		if err != nil {
			log.WithError(err).Error("Failed to create directory object")
			report.Results = append(report.Results, Result{Target: target, Status: StatusFailed, Err: err})
			continue
		}

		log.Info("Created directory object")
		report.Results = append(report.Results, Result{Target: target, Status: StatusCreated})
	}

	return report, nil
}

// attributes builds the entry for a target from its RDN
func attributes(t Target) ([]ldap.Attribute, error) {
	rdn, _, _ := strings.Cut(t.DN, ",")
	name, value, ok := strings.Cut(rdn, "=")
	if !ok || value == "" {
		return nil, fmt.Errorf("malformed DN %q", t.DN)
	}

	switch t.Kind {
	case KindContainer:
		if !strings.EqualFold(name, "ou") {
			return nil, fmt.Errorf("cannot create container %q: only ou= containers are supported", t.DN)
		}
		return []ldap.Attribute{
			{Name: "objectClass", Values: []string{"top", "organizationalUnit"}},
			{Name: "ou", Values: []string{value}},
		}, nil
	case KindGroup:
		if !strings.EqualFold(name, "cn") {
			return nil, fmt.Errorf("cannot create group %q: groups are named by cn", t.DN)
		}
		if t.GIDNumber == 0 {
			return []ldap.Attribute{
				{Name: "objectClass", Values: []string{"top", "groupOfNames"}},
				{Name: "cn", Values: []string{value}},
			}, nil
		}
		return []ldap.Attribute{
			{Name: "objectClass", Values: []string{"top", "groupOfNames", "posixGroup"}},
			{Name: "cn", Values: []string{value}},
			{Name: "gidNumber", Values: []string{strconv.Itoa(t.GIDNumber)}},
		}, nil
	default:
		return nil, fmt.Errorf("unknown kind %q", t.Kind)
	}
}

func hasObjectClass(e *ldap.Entry, class string) bool {
	for _, v := range e.Values("objectClass") {
		if strings.EqualFold(v, class) {
			return true
		}
	}
	return false
}
