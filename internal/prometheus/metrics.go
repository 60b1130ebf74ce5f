package prometheus

import (
	"fmt"
	"strconv"

	promclient "github.com/prometheus/client_golang/prometheus"
)

// Run-level metrics for the lifecycle tool. The tool exits after one batch, so
// metrics are written once to a node_exporter textfile instead of being scraped.

var (
	// Registry holds every metric of the run
	Registry = promclient.NewRegistry()

	// ═══════════════════════════════════════════════════════════════════════════
	// ACTION METRICS
	// ═══════════════════════════════════════════════════════════════════════════

	// ActionsTotal - Counter of processed actions by outcome kind
	ActionsTotal = promclient.NewCounterVec(
		promclient.CounterOpts{
			Name: "edir_actions_total",
			Help: "Total number of batch actions processed",
		},
		[]string{"action", "result"}, // result: success, validation, precondition, directory, provisioning, unrecognized
	)

	// ActionDuration - Histogram of end-to-end action durations
	ActionDuration = promclient.NewHistogramVec(
		promclient.HistogramOpts{
			Name:    "edir_action_duration_seconds",
			Help:    "Duration of batch actions in seconds",
			Buckets: promclient.DefBuckets,
		},
		[]string{"action"},
	)

	// LastRunTimestamp - Gauge set when the batch finishes
	LastRunTimestamp = promclient.NewGauge(
		promclient.GaugeOpts{
			Name: "edir_last_run_timestamp_seconds",
			Help: "Unix time the last batch run finished",
		},
	)

	// ═══════════════════════════════════════════════════════════════════════════
	// DIRECTORY METRICS
	// ═══════════════════════════════════════════════════════════════════════════

	// OperationDuration - Histogram of directory operation durations
	OperationDuration = promclient.NewHistogramVec(
		promclient.HistogramOpts{
			Name:    "edir_directory_operation_duration_seconds",
			Help:    "Duration of directory operations in seconds",
			Buckets: promclient.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
		},
		[]string{"operation", "success"}, // operation name, "true" or "false"
	)

	// OperationsTotal - Counter of all directory operations
	OperationsTotal = promclient.NewCounterVec(
		promclient.CounterOpts{
			Name: "edir_directory_operations_total",
			Help: "Total number of directory operations",
		},
		[]string{"operation", "success"}, // operation name, "true" or "false"
	)

	// SessionsOpened - Counter of bound sessions
	SessionsOpened = promclient.NewCounter(
		promclient.CounterOpts{
			Name: "edir_directory_sessions_total",
			Help: "Total number of bound directory sessions",
		},
	)

	// GroupMembershipsChanged - Counter of group membership value changes
	GroupMembershipsChanged = promclient.NewCounterVec(
		promclient.CounterOpts{
			Name: "edir_group_memberships_changed_total",
			Help: "Total number of group membership value changes",
		},
		[]string{"representation", "op"}, // "member" or "memberUid"; "add" or "delete"
	)

	// ═══════════════════════════════════════════════════════════════════════════
	// PROVISIONING METRICS
	// ═══════════════════════════════════════════════════════════════════════════

	// ProvisioningRequestsTotal - Counter of storage triggers by server and HTTP status
	ProvisioningRequestsTotal = promclient.NewCounterVec(
		promclient.CounterOpts{
			Name: "edir_provisioning_requests_total",
			Help: "Total number of storage provisioning requests",
		},
		[]string{"server", "status"}, // status "0" when the request never got a response
	)
)

// Init registers all metrics with the run registry
func Init() {
	Registry.MustRegister(
		ActionsTotal,
		ActionDuration,
		LastRunTimestamp,
		OperationDuration,
		OperationsTotal,
		SessionsOpened,
		GroupMembershipsChanged,
		ProvisioningRequestsTotal,
	)
}

// RecordProvisioning counts a storage trigger
func RecordProvisioning(server string, status int) {
	ProvisioningRequestsTotal.WithLabelValues(server, strconv.Itoa(status)).Inc()
}

// WriteTextfile writes the run registry in text exposition format
func WriteTextfile(path string) error {
	if err := promclient.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
