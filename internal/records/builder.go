// Package records turns validated batch requests into eDirectory attribute
// sets and modification lists.
package records

import (
	"strconv"
	"strings"

	"github.com/devplatform/edir-lifecycle/internal/config"
	"github.com/devplatform/edir-lifecycle/internal/identity"
	"github.com/devplatform/edir-lifecycle/internal/ldap"
	"github.com/devplatform/edir-lifecycle/internal/models"
)

// Object classes of a new user entry
var userObjectClasses = []string{
	"top",
	"person",
	"organizationalPerson",
	"inetOrgPerson",
	"ndsLoginProperties",
	"posixAccount",
}

// Password and login policy applied to every new user
var policyDefaults = []ldap.Attribute{
	{Name: "Language", Values: []string{"ENGLISH"}},
	{Name: "passwordUniqueRequired", Values: []string{"TRUE"}},
	{Name: "passwordRequired", Values: []string{"TRUE"}},
	{Name: "passwordMinimumLength", Values: []string{"5"}},
	{Name: "passwordAllowChange", Values: []string{"TRUE"}},
	{Name: "loginGraceRemaining", Values: []string{"3"}},
	{Name: "loginGraceLimit", Values: []string{"3"}},
}

// Builder maps requests onto directory attributes
type Builder struct {
	config     *config.Config
	classifier *identity.Classifier
}

// NewBuilder creates a record builder
func NewBuilder(cfg *config.Config, classifier *identity.Classifier) *Builder {
	return &Builder{config: cfg, classifier: classifier}
}

// profile is the set of attributes shared by create and update, derived for
// the username the entry carries after the action.
func (b *Builder) profile(r *models.ActionRequest, username string) []ldap.Attribute {
	dNumber := string(r.DNumber)
	return []ldap.Attribute{
		{Name: "description", Values: []string{string(r.Description)}},
		{Name: "loginDisabled", Values: []string{NormalizeBool(string(r.LoginDisabled))}},
		{Name: "givenName", Values: []string{string(r.GivenName)}},
		{Name: "fullName", Values: []string{string(r.FullName)}},
		{Name: "sn", Values: []string{string(r.SN)}},
		{Name: "uid", Values: []string{username}},
		{Name: "mail", Values: []string{username + b.config.MailDomain}},
		{Name: "uidNumber", Values: []string{string(r.UIDNumber)}},
		{Name: "gidNumber", Values: []string{string(r.GIDNumber)}},
		{Name: "homeDirectory", Values: []string{"/Users/" + username}},
		{Name: "employeeType", Values: []string{string(r.EmployeeType)}},
		{Name: "employeeNumber", Values: []string{EmployeeNumber(dNumber)}},
		{Name: "telexNumber", Values: []string{dNumber}},
		{Name: "ou", Values: []string{string(r.Department)}},
		{Name: "x500UniqueIdentifier", Values: []string{string(r.X500UniqueIdentifier)}},
	}
}

// CreateAttributes returns the full attribute set of a new user entry
func (b *Builder) CreateAttributes(r *models.ActionRequest, category models.Category) []ldap.Attribute {
	username := string(r.Username)

	attrs := []ldap.Attribute{
		{Name: "objectClass", Values: append([]string(nil), userObjectClasses...)},
		{Name: "cn", Values: []string{username}},
		{Name: "userPassword", Values: []string{string(r.UserPassword)}},
	}
	attrs = append(attrs, b.profile(r, username)...)
	attrs = append(attrs, ldap.Attribute{Name: "businessCategory", Values: []string{string(r.BusinessCategory)}})

	if server := b.classifier.HomeServer(category); server != "" {
		attrs = append(attrs, ldap.Attribute{
			Name:   "ndsHomeDirectory",
			Values: []string{b.config.HomeVolumeDN(server) + "#0#" + username},
		})
	}

	for _, attr := range policyDefaults {
		attrs = append(attrs, ldap.Attribute{Name: attr.Name, Values: append([]string(nil), attr.Values...)})
	}
	return attrs
}

// UpdateChanges returns the modification list applied to an existing entry
// once stale role markers are gone. Profile attributes are replaced and the
// new role value is added, leaving unrelated businessCategory values alone.
// Passwords are never reset here.
func (b *Builder) UpdateChanges(r *models.ActionRequest) []ldap.Change {
	profile := b.profile(r, r.TargetUsername())
	changes := make([]ldap.Change, 0, len(profile)+1)
	for _, attr := range profile {
		changes = append(changes, ldap.Replace(attr.Name, attr.Values...))
	}
	return append(changes, ldap.Add("businessCategory", string(r.BusinessCategory)))
}

// RoleMarkerDeletes returns one delete change per current businessCategory
// value carrying the role marker.
func (b *Builder) RoleMarkerDeletes(current []string) []ldap.Change {
	var changes []ldap.Change
	for _, value := range current {
		if strings.Contains(value, b.config.RoleMarker) {
			changes = append(changes, ldap.Delete("businessCategory", value))
		}
	}
	return changes
}

// EmployeeNumber strips the leading letter of a department ID (D01234567 -> 01234567)
func EmployeeNumber(dNumber string) string {
	if dNumber == "" {
		return ""
	}
	return dNumber[1:]
}

// NormalizeBool renders boolean-looking input as the directory's TRUE/FALSE.
// Anything else is passed through untouched.
func NormalizeBool(v string) string {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return v
	}
	if b {
		return "TRUE"
	}
	return "FALSE"
}
