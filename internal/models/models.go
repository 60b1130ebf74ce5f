package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Action is the closed set of lifecycle operations a batch item can request
type Action int

const (
	ActionUnknown Action = iota
	ActionCreate
	ActionUpdate
	ActionArchive
	ActionDelete
)

// ParseAction maps a batch keyword onto an Action. Unknown keywords yield
// ActionUnknown rather than an error so the engine can record an outcome.
func ParseAction(s string) Action {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "create":
		return ActionCreate
	case "update":
		return ActionUpdate
	case "archive":
		return ActionArchive
	case "delete":
		return ActionDelete
	default:
		return ActionUnknown
	}
}

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionArchive:
		return "archive"
	case ActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Category is the user category derived from the shape of a username
type Category int

const (
	CategoryEmployee Category = iota
	CategoryStudent
	CategoryGuest
)

func (c Category) String() string {
	switch c {
	case CategoryStudent:
		return "student"
	case CategoryGuest:
		return "guest"
	default:
		return "employee"
	}
}

// Text is a batch value that may arrive as a JSON string, number or boolean.
// It is always carried as its textual form.
type Text string

// UnmarshalJSON accepts strings, numbers, booleans and null.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*t = Text(n.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*t = "True"
		} else {
			*t = "False"
		}
		return nil
	}
	return fmt.Errorf("unsupported value %s", string(data))
}

// ActionRequest is one item of the batch input
type ActionRequest struct {
	Action               string `json:"action"`
	Username             Text   `json:"username"`
	NewUsername          Text   `json:"newusername"`
	LoginDisabled        Text   `json:"loginDisabled"`
	UIDNumber            Text   `json:"uidNumber"`
	GIDNumber            Text   `json:"gidNumber"`
	GivenName            Text   `json:"givenName"`
	FullName             Text   `json:"fullName"`
	SN                   Text   `json:"sn"`
	EmployeeType         Text   `json:"employeeType"`
	DNumber              Text   `json:"DNumber"`
	X500UniqueIdentifier Text   `json:"x500UniqueIdentifier"`
	Department           Text   `json:"primO"`
	BusinessCategory     Text   `json:"businessCategory"`
	UserPassword         Text   `json:"userPassword"`
	Description          Text   `json:"description"`
}

// TargetUsername returns the username the entry should carry after the
// action: newusername when given, otherwise username.
func (r *ActionRequest) TargetUsername() string {
	if r.NewUsername == "" {
		return string(r.Username)
	}
	return string(r.NewUsername)
}

// Batch is the top-level document of the batch input file
type Batch struct {
	UserActions []ActionRequest `json:"useractions"`
}

// Step is one directory mutation (or side effect) executed for an action
type Step struct {
	Name string
	Err  error
}

// OK reports whether the step succeeded
func (s Step) OK() bool {
	return s.Err == nil
}

// Outcome is the terminal result of one action
type Outcome struct {
	Action   string
	Username string
	Success  bool
	Kind     string
	Detail   string
	Steps    []Step
}

// Result renders the outcome the way it is recorded in the result file
func (o *Outcome) Result() string {
	if o.Success {
		return "SUCCESS: " + o.Detail
	}
	return "ERROR: " + o.Detail
}
