package lifecycle

import (
	"errors"
	"fmt"
)

// Outcome kinds, also used as metric labels
const (
	KindSuccess      = "success"
	KindValidation   = "validation"
	KindPrecondition = "precondition"
	KindDirectory    = "directory"
	KindProvisioning = "provisioning"
	KindUnrecognized = "unrecognized"
)

// Result details
const (
	msgUserAdded    = "User added to eDir"
	msgUserUpdated  = "User updated in eDir"
	msgUserArchived = "User archived in eDir"
	msgUserDeleted  = "User deleted from eDir"

	msgBindFailed     = "unable to connect to LDAP server"
	msgSearchFailed   = "directory search failed"
	msgUsernameTaken  = "username already taken"
	msgUserNotFound   = "user could not be found"
	msgNotDisabled    = "user is not disabled"
	msgCrossCategory  = "can't rename users across different OUs"
	msgGuestArchive   = "we do not archive guest accounts"
	msgCreateFailed   = "Could not create eDir user or update groups"
	msgRenameFailed   = "Could not rename eDir user"
	msgUpdateFailed   = "Could not update eDir user"
	msgMoveFailed     = "Could not move eDir user"
	msgDeleteFailed   = "Could not delete eDir user"
	msgStorageFailed  = "Could not provision storage for the user"
	msgUnrecognized   = "Unrecognized action"
	msgInvalidBoolean = "loginDisabled must be True or False"
	msgInvalidName    = "contains characters not allowed in an eDir name"
)

// ValidationError reports a required field that is missing or empty
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("Missing an expected input value for %s in input file", e.Field)
}

// PreconditionError reports directory state that forbids the action
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return e.Reason
}

// DirectoryError reports a failed directory call. Mutations applied before
// the failing one are left in place.
type DirectoryError struct {
	Op     string
	Detail string
	Err    error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Detail, e.Op, e.Err)
}

func (e *DirectoryError) Unwrap() error {
	return e.Err
}

// ProvisioningError reports a storage trigger that could not be delivered.
// The directory entry it belongs to stays in place.
type ProvisioningError struct {
	Err error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("%s: %v", msgStorageFailed, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// UnrecognizedActionError reports an action keyword outside the known set
type UnrecognizedActionError struct {
	Action string
}

func (e *UnrecognizedActionError) Error() string {
	return fmt.Sprintf("unrecognized action: %q", e.Action)
}

// classify maps an action error onto its outcome kind and result detail
func classify(err error) (kind, detail string) {
	var (
		validation   *ValidationError
		precondition *PreconditionError
		directory    *DirectoryError
		provisioning *ProvisioningError
		unrecognized *UnrecognizedActionError
	)

	switch {
	case errors.As(err, &validation):
		return KindValidation, validation.Error()
	case errors.As(err, &precondition):
		return KindPrecondition, precondition.Reason
	case errors.As(err, &directory):
		return KindDirectory, directory.Detail
	case errors.As(err, &provisioning):
		return KindProvisioning, msgStorageFailed
	case errors.As(err, &unrecognized):
		return KindUnrecognized, msgUnrecognized
	default:
		return KindDirectory, err.Error()
	}
}
