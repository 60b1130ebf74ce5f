package provisioning

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/devplatform/edir-lifecycle/internal/config"
	"github.com/devplatform/edir-lifecycle/internal/models"
	"github.com/sirupsen/logrus"
)

// Provisioner asks the file servers to create storage for a new user
type Provisioner interface {
	Provision(ctx context.Context, category models.Category, username, department string) error
}

// StatusRecorder receives the HTTP status of every trigger
type StatusRecorder func(server string, status int)

// Client triggers the getspace scripts on the student and employee file
// servers. The scripts are idempotent; the response status is only logged.
type Client struct {
	studentURL  string
	employeeURL string
	httpClient  *http.Client
	record      StatusRecorder
	logger      *logrus.Logger
}

// NewClient creates a provisioning client
func NewClient(cfg *config.Config, logger *logrus.Logger) *Client {
	return &Client{
		studentURL:  cfg.StudentProvisionURL,
		employeeURL: cfg.EmployeeProvisionURL,
		httpClient: &http.Client{
			Timeout: cfg.ProvisionTimeout,
		},
		logger: logger,
	}
}

// WithStatusRecorder registers a callback for trigger statuses
func (c *Client) WithStatusRecorder(record StatusRecorder) *Client {
	c.record = record
	return c
}

// Provision fires the trigger for the user's category. Guests get no storage.
// Only transport failures are returned; any HTTP status counts as delivered.
func (c *Client) Provision(ctx context.Context, category models.Category, username, department string) error {
	params := url.Values{}
	params.Set("username", username)

	var base, server string
	switch category {
	case models.CategoryStudent:
		base, server = c.studentURL, "student"
	case models.CategoryEmployee:
		base, server = c.employeeURL, "employee"
		params.Set("department", department)
	default:
		c.logger.WithField("username", username).Info("Not requesting any space for the guest user")
		return nil
	}

	target, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("invalid %s provisioning URL: %w", server, err)
	}
	query := target.Query()
	for k, v := range params {
		query[k] = v
	}
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"url":      target.String(),
		"username": username,
	}).Debug("Requesting user storage")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.record != nil {
			c.record(server, 0)
		}
		return fmt.Errorf("request to %s file server failed: %w", server, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if c.record != nil {
		c.record(server, resp.StatusCode)
	}

	c.logger.WithFields(logrus.Fields{
		"server":   server,
		"status":   resp.StatusCode,
		"username": username,
	}).Info("Storage request status")
	return nil
}
