package ldap

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/devplatform/edir-lifecycle/internal/config"
	ldap "github.com/go-ldap/ldap/v3"
	"github.com/sirupsen/logrus"
)

// Client opens eDirectory sessions over LDAP. Sessions are never pooled: each
// action dials, binds, works and unbinds on its own connection.
type Client struct {
	url         string
	bindDN      string
	password    string
	connTimeout time.Duration
	logger      *logrus.Logger
}

// NewClient creates a new directory client from the run configuration
func NewClient(cfg *config.Config, logger *logrus.Logger) *Client {
	return &Client{
		url:         cfg.LDAPURL,
		bindDN:      cfg.LDAPBindDN,
		password:    string(cfg.LDAPBindPassword),
		connTimeout: cfg.LDAPConnTimeout,
		logger:      logger,
	}
}

// Bind dials the directory and binds with the service credentials
func (c *Client) Bind(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.logger.WithField("url", c.url).Debug("Creating new LDAP connection")

	conn, err := ldap.DialURL(c.url, ldap.DialWithDialer(&net.Dialer{
		Timeout: c.connTimeout,
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to dial LDAP: %w", err)
	}
	if c.connTimeout > 0 {
		conn.SetTimeout(c.connTimeout)
	}

	// Bind with a user that has rights to add/update objects
	if err := conn.Bind(c.bindDN, c.password); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to bind: %w", err)
	}

	return &session{conn: conn, logger: c.logger}, nil
}
