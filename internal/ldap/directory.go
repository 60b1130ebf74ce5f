package ldap

import (
	"context"
	"strings"
)

// Scope is the depth of a directory search
type Scope int

const (
	ScopeBase Scope = iota
	ScopeOne
	ScopeSubtree
)

// ModOp is the kind of change applied to one attribute
type ModOp int

const (
	ModAdd ModOp = iota
	ModReplace
	ModDelete
)

func (o ModOp) String() string {
	switch o {
	case ModAdd:
		return "add"
	case ModReplace:
		return "replace"
	case ModDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Attribute is a named, possibly multi-valued directory attribute
type Attribute struct {
	Name   string
	Values []string
}

// Change is one attribute modification inside a modify request
type Change struct {
	Op     ModOp
	Attr   string
	Values []string
}

// Add builds an add change
func Add(attr string, values ...string) Change {
	return Change{Op: ModAdd, Attr: attr, Values: values}
}

// Replace builds a replace change
func Replace(attr string, values ...string) Change {
	return Change{Op: ModReplace, Attr: attr, Values: values}
}

// Delete builds a delete change. With no values the whole attribute is removed.
func Delete(attr string, values ...string) Change {
	return Change{Op: ModDelete, Attr: attr, Values: values}
}

// Entry is a search result
type Entry struct {
	DN         string
	Attributes []Attribute
}

// Values returns the values of an attribute; attribute names compare case-insensitively.
func (e *Entry) Values(name string) []string {
	for _, attr := range e.Attributes {
		if strings.EqualFold(attr.Name, name) {
			return attr.Values
		}
	}
	return nil
}

// Value returns the first value of an attribute or ""
func (e *Entry) Value(name string) string {
	values := e.Values(name)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Session is a bound directory connection. It is used by a single action and
// released with Unbind before the action returns.
type Session interface {
	Search(ctx context.Context, base string, scope Scope, filter string, attrs []string) ([]*Entry, error)
	Add(ctx context.Context, dn string, attrs []Attribute) error
	Modify(ctx context.Context, dn string, changes []Change) error
	// Rename changes the RDN of dn; a non-empty newSuperior also moves it.
	Rename(ctx context.Context, dn, newRDN, newSuperior string) error
	Delete(ctx context.Context, dn string) error
	Unbind() error
}

// Directory opens bound sessions
type Directory interface {
	Bind(ctx context.Context) (Session, error)
}
