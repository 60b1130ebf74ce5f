package main

import (
	"fmt"
	"io"

	"github.com/devplatform/edir-lifecycle/internal/bootstrap"
	"github.com/devplatform/edir-lifecycle/internal/ldap"
	"github.com/devplatform/edir-lifecycle/internal/prometheus"
	"github.com/spf13/cobra"
)

func newInitCmd(logFile, logLevel *string) *cobra.Command {
	var create bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Check that the containers and groups used by the actions exist",
		Long: "Looks up every user container, _Archive container, general group and " +
			"departmental group the lifecycle actions write to. With --create, missing " +
			"containers and groups are added.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, closeLog, err := setup(cmd, *logFile, *logLevel)
			if err != nil {
				return err
			}
			defer closeLog.Close()

			directory := prometheus.NewDirectoryCollector(ldap.NewClient(cfg, logger))
			report, err := bootstrap.New(cfg, directory, logger).Ensure(cmd.Context(), create)
			if err != nil {
				return err
			}

			printReport(cmd.OutOrStdout(), report)
			if failed := report.Count(bootstrap.StatusFailed); failed > 0 {
				return fmt.Errorf("%d directory objects could not be checked or created", failed)
			}
			if missing := report.Count(bootstrap.StatusMissing); missing > 0 {
				return fmt.Errorf("%d directory objects are missing, rerun with --create", missing)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&create, "create", false, "Create missing containers and groups")
	return cmd
}

func printReport(w io.Writer, report *bootstrap.Report) {
	for _, r := range report.Results {
		if r.Err != nil {
			fmt.Fprintf(w, "%-8s %-9s %s (%v)\n", r.Status, r.Kind, r.DN, r.Err)
			continue
		}
		fmt.Fprintf(w, "%-8s %-9s %s\n", r.Status, r.Kind, r.DN)
	}
	fmt.Fprintf(w, "%d exist, %d created, %d missing, %d failed\n",
		report.Count(bootstrap.StatusExists),
		report.Count(bootstrap.StatusCreated),
		report.Count(bootstrap.StatusMissing),
		report.Count(bootstrap.StatusFailed))
}
