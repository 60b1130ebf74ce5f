package ldap

import (
	"context"
	"fmt"

	ldap "github.com/go-ldap/ldap/v3"
	"github.com/sirupsen/logrus"
)

// session is a Session backed by a go-ldap connection
type session struct {
	conn   *ldap.Conn
	logger *logrus.Logger
}

func toLDAPScope(scope Scope) int {
	switch scope {
	case ScopeBase:
		return ldap.ScopeBaseObject
	case ScopeOne:
		return ldap.ScopeSingleLevel
	default:
		return ldap.ScopeWholeSubtree
	}
}

// Search runs a search and converts the entries
func (s *session) Search(ctx context.Context, base string, scope Scope, filter string, attrs []string) ([]*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	searchRequest := ldap.NewSearchRequest(
		base,
		toLDAPScope(scope),
		ldap.NeverDerefAliases,
		0,
		0,
		false,
		filter,
		attrs,
		nil,
	)

	result, err := s.conn.Search(searchRequest)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return nil, nil
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}

	entries := make([]*Entry, 0, len(result.Entries))
	for _, e := range result.Entries {
		entry := &Entry{DN: e.DN}
		for _, attr := range e.Attributes {
			entry.Attributes = append(entry.Attributes, Attribute{Name: attr.Name, Values: attr.Values})
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// Add creates a new entry
func (s *session) Add(ctx context.Context, dn string, attrs []Attribute) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addRequest := ldap.NewAddRequest(dn, nil)
	for _, attr := range attrs {
		addRequest.Attribute(attr.Name, attr.Values)
	}

	if err := s.conn.Add(addRequest); err != nil {
		return fmt.Errorf("failed to add %s: %w", dn, err)
	}

	s.logger.WithField("dn", dn).Debug("Entry added")
	return nil
}

// Modify applies changes to an entry in a single request
func (s *session) Modify(ctx context.Context, dn string, changes []Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	modifyRequest := ldap.NewModifyRequest(dn, nil)
	for _, change := range changes {
		switch change.Op {
		case ModAdd:
			modifyRequest.Add(change.Attr, change.Values)
		case ModReplace:
			modifyRequest.Replace(change.Attr, change.Values)
		case ModDelete:
			modifyRequest.Delete(change.Attr, change.Values)
		default:
			return fmt.Errorf("unsupported modify operation %d on %s", change.Op, change.Attr)
		}
	}

	if err := s.conn.Modify(modifyRequest); err != nil {
		return fmt.Errorf("failed to modify %s: %w", dn, err)
	}

	s.logger.WithFields(logrus.Fields{
		"dn":      dn,
		"changes": len(changes),
	}).Debug("Entry modified")
	return nil
}

// Rename changes an entry's RDN and optionally moves it
func (s *session) Rename(ctx context.Context, dn, newRDN, newSuperior string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	modifyDNRequest := ldap.NewModifyDNRequest(dn, newRDN, true, newSuperior)
	if err := s.conn.ModifyDN(modifyDNRequest); err != nil {
		return fmt.Errorf("failed to rename %s: %w", dn, err)
	}

	s.logger.WithFields(logrus.Fields{
		"dn":           dn,
		"new_rdn":      newRDN,
		"new_superior": newSuperior,
	}).Debug("Entry renamed")
	return nil
}

// Delete removes an entry
func (s *session) Delete(ctx context.Context, dn string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	deleteRequest := ldap.NewDelRequest(dn, nil)
	if err := s.conn.Del(deleteRequest); err != nil {
		return fmt.Errorf("failed to delete %s: %w", dn, err)
	}

	s.logger.WithField("dn", dn).Debug("Entry deleted")
	return nil
}

// Unbind releases the connection
func (s *session) Unbind() error {
	err := s.conn.Unbind()
	s.conn.Close()
	if err != nil {
		return fmt.Errorf("failed to unbind: %w", err)
	}
	return nil
}

// EscapeFilter escapes a value for use inside a search filter
func EscapeFilter(value string) string {
	return ldap.EscapeFilter(value)
}
