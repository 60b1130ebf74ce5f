// Package ldaptest provides an in-memory directory that records every call,
// for exercising code written against ldap.Directory.
package ldaptest

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/devplatform/edir-lifecycle/internal/ldap"
)

// Call is one recorded session operation
type Call struct {
	Op          string // bind, search, add, modify, rename, delete, unbind
	DN          string
	Filter      string
	Attrs       []ldap.Attribute
	Changes     []ldap.Change
	NewRDN      string
	NewSuperior string
}

// Mutation reports whether the call changed directory state
func (c Call) Mutation() bool {
	switch c.Op {
	case "add", "modify", "rename", "delete":
		return true
	}
	return false
}

// Directory is a fake ldap.Directory holding entries in memory. Entries are
// keyed by lower-cased DN. Failures can be injected per operation and DN.
type Directory struct {
	mu      sync.Mutex
	entries map[string]*ldap.Entry
	calls   []Call

	// BindErr, when set, is returned by Bind.
	BindErr error
	// Fail maps "op dn" (for example "modify cn=grp,o=DA") to an error
	// returned by that operation. The dn part is compared case-insensitively.
	Fail map[string]error
}

// New returns an empty directory
func New() *Directory {
	return &Directory{
		entries: make(map[string]*ldap.Entry),
		Fail:    make(map[string]error),
	}
}

// Put stores an entry, replacing any existing one
func (d *Directory) Put(dn string, attrs ...ldap.Attribute) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[strings.ToLower(dn)] = &ldap.Entry{DN: dn, Attributes: cloneAttrs(attrs)}
}

// Get returns a copy of the entry at dn, or nil
func (d *Directory) Get(dn string) *ldap.Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[strings.ToLower(dn)]
	if !ok {
		return nil
	}
	return &ldap.Entry{DN: e.DN, Attributes: cloneAttrs(e.Attributes)}
}

// Remove drops the entry at dn without recording a call, standing in for a
// change made by another client.
func (d *Directory) Remove(dn string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, strings.ToLower(dn))
}

// Calls returns every recorded call in order
func (d *Directory) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// CallsOf returns the recorded calls with the given op
func (d *Directory) CallsOf(op string) []Call {
	var out []Call
	for _, c := range d.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Mutations returns the recorded calls that changed state
func (d *Directory) Mutations() []Call {
	var out []Call
	for _, c := range d.Calls() {
		if c.Mutation() {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets recorded calls but keeps entries
func (d *Directory) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
}

func (d *Directory) record(c Call) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, c)
}

func (d *Directory) failure(op, dn string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, err := range d.Fail {
		parts := strings.SplitN(key, " ", 2)
		if parts[0] != op {
			continue
		}
		if len(parts) == 1 || strings.EqualFold(parts[1], dn) {
			return err
		}
	}
	return nil
}

// Bind implements ldap.Directory
func (d *Directory) Bind(ctx context.Context) (ldap.Session, error) {
	d.record(Call{Op: "bind"})
	if d.BindErr != nil {
		return nil, d.BindErr
	}
	return &session{dir: d}, nil
}

type session struct {
	dir *Directory
}

var equalityFilter = regexp.MustCompile(`^\(([A-Za-z0-9-]+)=([^()*]*)\)$`)

func (s *session) Search(ctx context.Context, base string, scope ldap.Scope, filter string, attrs []string) ([]*ldap.Entry, error) {
	d := s.dir
	d.record(Call{Op: "search", DN: base, Filter: filter})
	if err := d.failure("search", base); err != nil {
		return nil, err
	}

	m := equalityFilter.FindStringSubmatch(filter)
	if m == nil && filter != "(objectClass=*)" {
		return nil, fmt.Errorf("ldaptest: unsupported filter %q", filter)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	lbase := strings.ToLower(base)
	var out []*ldap.Entry
	for key, e := range d.entries {
		if !inScope(key, lbase, scope) {
			continue
		}
		if m != nil && !hasValue(e, m[1], unescapeFilter(m[2])) {
			continue
		}
		out = append(out, project(e, attrs))
	}
	return out, nil
}

func (s *session) Add(ctx context.Context, dn string, attrs []ldap.Attribute) error {
	d := s.dir
	d.record(Call{Op: "add", DN: dn, Attrs: cloneAttrs(attrs)})
	if err := d.failure("add", dn); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	key := strings.ToLower(dn)
	if _, ok := d.entries[key]; ok {
		return fmt.Errorf("entry already exists: %s", dn)
	}
	d.entries[key] = &ldap.Entry{DN: dn, Attributes: cloneAttrs(attrs)}
	return nil
}

func (s *session) Modify(ctx context.Context, dn string, changes []ldap.Change) error {
	d := s.dir
	d.record(Call{Op: "modify", DN: dn, Changes: append([]ldap.Change(nil), changes...)})
	if err := d.failure("modify", dn); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[strings.ToLower(dn)]
	if !ok {
		return fmt.Errorf("no such object: %s", dn)
	}
	for _, c := range changes {
		applyChange(e, c)
	}
	return nil
}

func (s *session) Rename(ctx context.Context, dn, newRDN, newSuperior string) error {
	d := s.dir
	d.record(Call{Op: "rename", DN: dn, NewRDN: newRDN, NewSuperior: newSuperior})
	if err := d.failure("rename", dn); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	key := strings.ToLower(dn)
	e, ok := d.entries[key]
	if !ok {
		return fmt.Errorf("no such object: %s", dn)
	}
	parent := newSuperior
	if parent == "" {
		if i := strings.Index(dn, ","); i >= 0 {
			parent = dn[i+1:]
		}
	}
	newDN := newRDN + "," + parent
	if _, exists := d.entries[strings.ToLower(newDN)]; exists {
		return fmt.Errorf("entry already exists: %s", newDN)
	}
	delete(d.entries, key)
	e.DN = newDN
	if parts := strings.SplitN(newRDN, "=", 2); len(parts) == 2 {
		applyChange(e, ldap.Replace(parts[0], parts[1]))
	}
	d.entries[strings.ToLower(newDN)] = e
	return nil
}

func (s *session) Delete(ctx context.Context, dn string) error {
	d := s.dir
	d.record(Call{Op: "delete", DN: dn})
	if err := d.failure("delete", dn); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	key := strings.ToLower(dn)
	if _, ok := d.entries[key]; !ok {
		return fmt.Errorf("no such object: %s", dn)
	}
	delete(d.entries, key)
	return nil
}

func (s *session) Unbind() error {
	s.dir.record(Call{Op: "unbind"})
	return nil
}

func inScope(key, base string, scope ldap.Scope) bool {
	switch scope {
	case ldap.ScopeBase:
		return key == base
	case ldap.ScopeOne:
		i := strings.Index(key, ",")
		return i >= 0 && key[i+1:] == base
	default:
		return key == base || strings.HasSuffix(key, ","+base)
	}
}

func hasValue(e *ldap.Entry, attr, value string) bool {
	for _, v := range e.Values(attr) {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}

func unescapeFilter(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+2 < len(s) {
			var c byte
			if _, err := fmt.Sscanf(s[i+1:i+3], "%02x", &c); err == nil {
				b.WriteByte(c)
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func project(e *ldap.Entry, attrs []string) *ldap.Entry {
	out := &ldap.Entry{DN: e.DN}
	if len(attrs) == 0 {
		out.Attributes = cloneAttrs(e.Attributes)
		return out
	}
	for _, name := range attrs {
		if values := e.Values(name); values != nil {
			out.Attributes = append(out.Attributes, ldap.Attribute{Name: name, Values: append([]string(nil), values...)})
		}
	}
	return out
}

func applyChange(e *ldap.Entry, c ldap.Change) {
	idx := -1
	for i, attr := range e.Attributes {
		if strings.EqualFold(attr.Name, c.Attr) {
			idx = i
			break
		}
	}

	switch c.Op {
	case ldap.ModAdd:
		if idx < 0 {
			e.Attributes = append(e.Attributes, ldap.Attribute{Name: c.Attr, Values: append([]string(nil), c.Values...)})
			return
		}
		e.Attributes[idx].Values = append(e.Attributes[idx].Values, c.Values...)
	case ldap.ModReplace:
		if idx < 0 {
			e.Attributes = append(e.Attributes, ldap.Attribute{Name: c.Attr, Values: append([]string(nil), c.Values...)})
			return
		}
		e.Attributes[idx].Values = append([]string(nil), c.Values...)
	case ldap.ModDelete:
		if idx < 0 {
			return
		}
		if len(c.Values) == 0 {
			e.Attributes = append(e.Attributes[:idx], e.Attributes[idx+1:]...)
			return
		}
		kept := e.Attributes[idx].Values[:0]
		for _, v := range e.Attributes[idx].Values {
			if !contains(c.Values, v) {
				kept = append(kept, v)
			}
		}
		e.Attributes[idx].Values = kept
	}
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func cloneAttrs(attrs []ldap.Attribute) []ldap.Attribute {
	out := make([]ldap.Attribute, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, ldap.Attribute{Name: a.Name, Values: append([]string(nil), a.Values...)})
	}
	return out
}
