package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ogulcanaydogan/finalert/pkg/notify"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate all active alert rules once",
	Long: `Evaluate every active alert rule against the ledgers and create the
resulting notifications. Intended to be run from cron. Exits 1 when any rule fails.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

// checkAlertsCmd is the root of the standalone check-alerts binary.
var checkAlertsCmd = &cobra.Command{
	Use:          "check-alerts",
	Short:        "Evaluate all active alert rules once",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkAlertsCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default: ~/.finalert/config.yaml)")
}

// ExecuteCheck runs the check-alerts binary.
func ExecuteCheck() {
	if err := checkAlertsCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCheck(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	a, err := initApp()
	if err != nil {
		progress(out, "Alert check failed: %v", err)
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Check.Timeout)
	defer cancel()

	progress(out, "Starting alert check...")
	result, err := a.runner.Run(ctx)
	if errors.Is(err, notify.ErrLocked) {
		progress(out, "Another alert check is running, skipping.")
		return nil
	}

	pushMetrics(a)

	if err != nil {
		progress(out, "Alert check failed: %v", err)
		return err
	}
	return reportCheck(out, result)
}

func reportCheck(out io.Writer, result *notify.CheckResult) error {
	for _, ev := range result.Triggered {
		progress(out, "Rule %q (%s) triggered with %d item(s)", ev.RuleName, ev.AlertType, len(ev.Items))
	}
	for _, re := range result.Errors {
		progress(out, "Rule %q (%s) failed: %v", re.RuleName, re.AlertType, re.Err)
	}

	progress(out, "Alert check completed. Rules checked: %d, triggered: %d, notifications: %d, suppressed: %d",
		result.RulesChecked, result.RulesTriggered, result.NotificationsCreated, result.NotificationsSuppressed)

	if !result.Success {
		return fmt.Errorf("%d alert rule(s) failed", len(result.Errors))
	}
	return nil
}

func pushMetrics(a *app) {
	if a.metrics == nil || a.cfg.Metrics.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.metrics.Push(ctx, a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.Job); err != nil {
		a.logger.Warn("push metrics failed", zap.String("url", a.cfg.Metrics.PushgatewayURL), zap.Error(err))
	}
}

func progress(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "[%s] %s\n", time.Now().Format("2006-01-02 15:04:05"), fmt.Sprintf(format, args...))
}
