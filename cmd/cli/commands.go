package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ylxai/hafiportrait-monitor/cmd/cli/client"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show current platform health",
		RunE: func(cmd *cobra.Command, args []string) error {
			health, err := apiClient.GetHealth()
			if err != nil {
				return err
			}

			fmt.Printf("Overall Status: %s\n", health.Status)
			fmt.Printf("Snapshot Time:  %s\n", health.Timestamp.Format(time.RFC3339))
			fmt.Printf("Uptime:         %.0fs\n", health.Stats.UptimeSeconds)
			fmt.Printf("Total Checks:   %d\n", health.Stats.TotalChecks)
			fmt.Printf("Healthy:        %.1f%%\n\n", health.Stats.HealthyPercentage)

			m := health.Metrics
			fmt.Printf("CPU:      %.1f%%\n", m.CPU.Usage)
			fmt.Printf("Memory:   %.1f%%\n", m.Memory.Percentage)
			fmt.Printf("Storage:  %.1f%%\n", m.Storage.Percentage)
			fmt.Printf("Database: %s (%.0fms)\n", m.Database.Status, m.Database.QueryTimeMs)
			fmt.Printf("API:      %.1f%% errors, %.0fms\n\n", m.API.ErrorRatePct, m.API.ResponseTimeMs)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.TabIndent)
			fmt.Fprintln(w, "CHECK\tSTATUS\tTIME\tMESSAGE\t")
			for _, check := range health.HealthChecks {
				fmt.Fprintf(w, "%s\t%s\t%.0fms\t%s\t\n",
					check.Name, check.Status, check.ResponseTimeMs, check.Message)
			}
			return w.Flush()
		},
	}
}

func newAlertsCommand() *cobra.Command {
	var filter client.AlertFilter
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			alerts, err := apiClient.ListAlerts(filter)
			if err != nil {
				return err
			}
			if len(alerts) == 0 {
				fmt.Println("No alerts found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.TabIndent)
			fmt.Fprintln(w, "ID\tSEVERITY\tCATEGORY\tLEVEL\tRESOLVED\tTITLE\t")
			for _, a := range alerts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%v\t%s\t\n",
					a.ID[:8], a.Severity, a.Category, a.EscalationLevel, a.Resolved, a.Title)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&filter.Severity, "severity", "", "Filter by severity")
	cmd.Flags().StringVar(&filter.Category, "category", "", "Filter by category")
	cmd.Flags().StringVar(&filter.Resolved, "resolved", "", "Filter by resolution state (true/false)")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "Maximum number of alerts")
	return cmd
}

func newResolveCommand() *cobra.Command {
	var resolvedBy string
	cmd := &cobra.Command{
		Use:   "resolve [alert-id]",
		Short: "Resolve an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient.ResolveAlert(args[0], resolvedBy); err != nil {
				return err
			}
			fmt.Println("Alert resolved")
			return nil
		},
	}
	cmd.Flags().StringVar(&resolvedBy, "by", "hafictl", "Resolver identity")
	return cmd
}

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Trigger an on-demand monitoring cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient.TriggerCheck(); err != nil {
				return err
			}
			fmt.Println("Monitoring cycle completed")
			return nil
		},
	}
}

func newTestAlertCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "test-alert",
		Short: "Send a test alert through the notification pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := apiClient.SendTestAlert()
			if err != nil {
				return err
			}
			fmt.Printf("Test alert created: %s\n", a.ID)
			return nil
		},
	}
}
