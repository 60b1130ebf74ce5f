package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds every site constant the lifecycle tool needs. It is built once
// by Load and passed by pointer to the components; nothing mutates it afterwards.
type Config struct {
	// LDAP configuration
	LDAPURL          string        `envconfig:"LDAP_URL" required:"true"`
	LDAPBaseDN       string        `envconfig:"LDAP_BASE_DN" required:"true"`
	LDAPBindDN       string        `envconfig:"LDAP_BIND_DN" required:"true"`
	LDAPBindPassword Base64Secret  `envconfig:"LDAP_BIND_PASSWORD" required:"true"`
	LDAPConnTimeout  time.Duration `envconfig:"LDAP_CONN_TIMEOUT" default:"10s"`

	// Naming rules
	MailDomain        string `envconfig:"MAIL_DOMAIN" required:"true"`
	StudentPattern    string `envconfig:"STUDENT_PATTERN" required:"true"`
	GuestPattern      string `envconfig:"GUEST_PATTERN" required:"true"`
	GuestSuffixLength int    `envconfig:"GUEST_SUFFIX_LENGTH" default:"4"`
	RoleMarker        string `envconfig:"ROLE_MARKER" required:"true"`

	// Home directory servers
	StudentServer    string `envconfig:"STUDENT_SERVER" required:"true"`
	EmployeeServer   string `envconfig:"EMPLOYEE_SERVER" required:"true"`
	HomeVolumeSuffix string `envconfig:"HOME_VOLUME_SUFFIX" required:"true"`
	ServerContainer  string `envconfig:"SERVER_CONTAINER" required:"true"`

	// User containers
	StudentContainer  string `envconfig:"STUDENT_CONTAINER" required:"true"`
	GuestContainer    string `envconfig:"GUEST_CONTAINER" required:"true"`
	EmployeeContainer string `envconfig:"EMPLOYEE_CONTAINER" required:"true"`

	// Groups
	DepartmentGroupSuffix    string            `envconfig:"DEPARTMENT_GROUP_SUFFIX" required:"true"`
	DepartmentGroupContainer string            `envconfig:"DEPARTMENT_GROUP_CONTAINER" required:"true"`
	GeneralGroupContainer    string            `envconfig:"GENERAL_GROUP_CONTAINER" required:"true"`
	StudentGeneralGroup      string            `envconfig:"STUDENT_GENERAL_GROUP" required:"true"`
	GuestGeneralGroup        string            `envconfig:"GUEST_GENERAL_GROUP" required:"true"`
	EmployeeGeneralGroup     string            `envconfig:"EMPLOYEE_GENERAL_GROUP" required:"true"`
	EmployeeWorkstationGroup string            `envconfig:"EMPLOYEE_WORKSTATION_GROUP" required:"true"`
	CategoryGroupGIDBase     int               `envconfig:"CATEGORY_GROUP_GID_BASE" default:"20000"`
	DepartmentGroups         map[string]string `envconfig:"DEPARTMENT_GROUPS" default:"Admissions:Admissions,Art:Art,History:History,Biology:Biology,Chemistry:Chemistry,Cinema:Cinema,Classical Studies:Classics,English:English,Library:Library,Museum:Museum,Music:Music,Philosophy:Philosophy,Religion:Religion,Theatre:Theatre"`
	DepartmentGroupsFile     string            `envconfig:"DEPARTMENT_GROUPS_FILE"`

	// Operator notifications
	NotifyFrom string `envconfig:"NOTIFY_FROM" required:"true"`
	NotifyTo   string `envconfig:"NOTIFY_TO" required:"true"`
	SMTPAddr   string `envconfig:"SMTP_ADDR" required:"true"`

	// Storage provisioning triggers
	StudentProvisionURL  string        `envconfig:"STUDENT_PROVISION_URL" required:"true"`
	EmployeeProvisionURL string        `envconfig:"EMPLOYEE_PROVISION_URL" required:"true"`
	ProvisionTimeout     time.Duration `envconfig:"PROVISION_TIMEOUT" default:"30s"`

	// Run output
	LogFile         string `envconfig:"LOG_FILE" default:"edir.log"`
	LogLevel        string `envconfig:"LOG_LEVEL" default:"debug"`
	MetricsTextfile string `envconfig:"METRICS_TEXTFILE"`
}

// Base64Secret is a credential supplied base64-encoded in the environment.
type Base64Secret string

// Decode implements envconfig.Decoder.
func (s *Base64Secret) Decode(value string) error {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("not valid base64: %w", err)
	}
	*s = Base64Secret(raw)
	return nil
}

// String keeps the secret out of logs.
func (s Base64Secret) String() string {
	return "********"
}

// Load reads configuration from environment variables. Any missing required
// constant is reported as an error; the caller treats it as fatal.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.DepartmentGroupsFile != "" {
		overlay, err := loadDepartmentGroups(cfg.DepartmentGroupsFile)
		if err != nil {
			return nil, err
		}
		merged := make(map[string]string, len(cfg.DepartmentGroups)+len(overlay))
		for k, v := range cfg.DepartmentGroups {
			merged[k] = v
		}
		for k, v := range overlay {
			merged[k] = v
		}
		cfg.DepartmentGroups = merged
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDepartmentGroups reads a YAML mapping of department name to group name.
func loadDepartmentGroups(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read department groups file: %w", err)
	}

	var groups map[string]string
	if err := yaml.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("failed to parse department groups file %s: %w", path, err)
	}
	return groups, nil
}

// Validate checks rules envconfig tags cannot express.
func (c *Config) Validate() error {
	if c.GuestSuffixLength < 0 {
		return fmt.Errorf("GUEST_SUFFIX_LENGTH must not be negative")
	}
	// An empty pattern would match every username.
	for name, v := range map[string]string{
		"STUDENT_PATTERN": c.StudentPattern,
		"GUEST_PATTERN":   c.GuestPattern,
		"ROLE_MARKER":     c.RoleMarker,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}
	if c.CategoryGroupGIDBase <= 0 {
		return fmt.Errorf("CATEGORY_GROUP_GID_BASE must be positive")
	}
	for name, dn := range map[string]string{
		"SERVER_CONTAINER":           c.ServerContainer,
		"STUDENT_CONTAINER":          c.StudentContainer,
		"GUEST_CONTAINER":            c.GuestContainer,
		"EMPLOYEE_CONTAINER":         c.EmployeeContainer,
		"DEPARTMENT_GROUP_CONTAINER": c.DepartmentGroupContainer,
		"GENERAL_GROUP_CONTAINER":    c.GeneralGroupContainer,
	} {
		if !c.UnderBase(dn) {
			return fmt.Errorf("%s %q is not under LDAP_BASE_DN %q", name, dn, c.LDAPBaseDN)
		}
	}
	if c.LDAPBindPassword == "" {
		return fmt.Errorf("LDAP_BIND_PASSWORD decodes to an empty secret")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel)
	}
	return nil
}

// UnderBase reports whether dn is LDAP_BASE_DN or one of its descendants.
// Names are compared case-insensitively with the spaces after commas removed.
func (c *Config) UnderBase(dn string) bool {
	base := normalizeDN(c.LDAPBaseDN)
	name := normalizeDN(dn)
	if base == "" || name == "" {
		return false
	}
	return name == base || strings.HasSuffix(name, ","+base)
}

func normalizeDN(dn string) string {
	parts := strings.Split(strings.TrimSpace(dn), ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return strings.ToLower(strings.Join(parts, ","))
}

// ArchiveContainer returns the archival container under a user container
func ArchiveContainer(container string) string {
	return "ou=_Archive," + container
}

// GeneralGroupDN returns the full DN for a GeneralMac/GeneralWS group
func (c *Config) GeneralGroupDN(cn string) string {
	return fmt.Sprintf("cn=%s,%s", cn, c.GeneralGroupContainer)
}

// DepartmentGroupDN returns the full DN for a departmental group
func (c *Config) DepartmentGroupDN(group string) string {
	return fmt.Sprintf("cn=%s%s,%s", group, c.DepartmentGroupSuffix, c.DepartmentGroupContainer)
}

// HomeVolumeDN returns the DN of a server's home directory volume
func (c *Config) HomeVolumeDN(server string) string {
	return fmt.Sprintf("cn=%s%s,%s", server, c.HomeVolumeSuffix, c.ServerContainer)
}
