package lifecycle

import (
	"strconv"
	"strings"

	"github.com/devplatform/edir-lifecycle/internal/models"
)

type field struct {
	name  string
	value func(r *models.ActionRequest) string
}

func text(get func(r *models.ActionRequest) models.Text) func(r *models.ActionRequest) string {
	return func(r *models.ActionRequest) string { return string(get(r)) }
}

var (
	fieldUsername    = field{"username", text(func(r *models.ActionRequest) models.Text { return r.Username })}
	fieldNewUsername = field{"newusername", func(r *models.ActionRequest) string { return r.TargetUsername() }}
	fieldPassword    = field{"userPassword", text(func(r *models.ActionRequest) models.Text { return r.UserPassword })}
	fieldDescription = field{"description", text(func(r *models.ActionRequest) models.Text { return r.Description })}

	profileFields = []field{
		{"loginDisabled", text(func(r *models.ActionRequest) models.Text { return r.LoginDisabled })},
		{"uidNumber", text(func(r *models.ActionRequest) models.Text { return r.UIDNumber })},
		{"gidNumber", text(func(r *models.ActionRequest) models.Text { return r.GIDNumber })},
		{"givenName", text(func(r *models.ActionRequest) models.Text { return r.GivenName })},
		{"fullName", text(func(r *models.ActionRequest) models.Text { return r.FullName })},
		{"sn", text(func(r *models.ActionRequest) models.Text { return r.SN })},
		{"employeeType", text(func(r *models.ActionRequest) models.Text { return r.EmployeeType })},
		{"DNumber", text(func(r *models.ActionRequest) models.Text { return r.DNumber })},
		{"x500UniqueIdentifier", text(func(r *models.ActionRequest) models.Text { return r.X500UniqueIdentifier })},
		{"primO", text(func(r *models.ActionRequest) models.Text { return r.Department })},
		{"businessCategory", text(func(r *models.ActionRequest) models.Text { return r.BusinessCategory })},
	}
)

// Fields each action requires, in the order they are checked
var requiredFields = map[models.Action][]field{
	models.ActionCreate:  concat([]field{fieldUsername}, profileFields, []field{fieldPassword, fieldDescription}),
	models.ActionUpdate:  concat([]field{fieldUsername, fieldNewUsername}, profileFields, []field{fieldDescription}),
	models.ActionArchive: {fieldUsername},
	models.ActionDelete:  {fieldUsername},
}

func concat(groups ...[]field) []field {
	var out []field
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// validate checks that every field the action uses is present. The first
// empty field is reported.
func validate(action models.Action, r *models.ActionRequest) error {
	fields := requiredFields[action]
	for _, f := range fields {
		if strings.TrimSpace(f.value(r)) == "" {
			return &ValidationError{Field: f.name}
		}
	}

	for _, f := range []field{fieldUsername, fieldNewUsername} {
		if name := f.value(r); name != "" && !validName(name) {
			return &ValidationError{Field: f.name, Reason: f.name + " " + msgInvalidName}
		}
	}

	if action == models.ActionCreate || action == models.ActionUpdate {
		if _, err := strconv.ParseBool(strings.TrimSpace(string(r.LoginDisabled))); err != nil {
			return &ValidationError{Field: "loginDisabled", Reason: msgInvalidBoolean}
		}
	}
	return nil
}

// validName reports whether name can be used as a cn RDN value as is. The
// username is also written to memberUid, mail and the home directory path,
// so characters that would need DN escaping are rejected instead of escaped.
func validName(name string) bool {
	if strings.TrimSpace(name) != name || strings.HasPrefix(name, "#") {
		return false
	}
	return !strings.ContainsAny(name, `,+"\<>;=/`) && !strings.ContainsRune(name, 0)
}
