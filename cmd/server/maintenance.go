/*
maintenance.go - Offline backfill and integrity commands

PURPOSE:
  Run the same backfill and integrity check the admin endpoints expose,
  directly against the database. Results are printed as JSON on stdout,
  logs go to stderr.

SEE ALSO:
  - worktime/backfill.go: Backfiller
  - worktime/integrity.go: IntegrityValidator
*/
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/worktime-engine/generic"
	"github.com/warp/worktime-engine/worktime"
)

var (
	targetUsers []string
	fromDay     string
	toDay       string
	windowDays  int
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Rebuild sessions and aggregates from recorded punches",
	Long: `Replays the punch log of each user over [from, to] and rebuilds
migrated sessions and daily aggregates. Days that already hold live or
corrected sessions are skipped. Without --user every known user is replayed.`,
	RunE: runBackfill,
}

var integrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Audit sessions and aggregates without changing them",
	RunE:  runIntegrity,
}

func init() {
	backfillCmd.Flags().StringSliceVar(&targetUsers, "user", nil, "User to replay (repeatable)")
	backfillCmd.Flags().StringVar(&fromDay, "from", "", "First day, YYYY-MM-DD")
	backfillCmd.Flags().StringVar(&toDay, "to", "", "Last day, YYYY-MM-DD")
	_ = backfillCmd.MarkFlagRequired("from")
	_ = backfillCmd.MarkFlagRequired("to")

	integrityCmd.Flags().StringSliceVar(&targetUsers, "user", nil, "User to audit (repeatable)")
	integrityCmd.Flags().IntVar(&windowDays, "days", 30, "Days audited, ending today")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	from, err := generic.ParseDay(fromDay)
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	to, err := generic.ParseDay(toDay)
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}
	period := generic.Period{Start: from, End: to}
	if err := period.Validate(); err != nil {
		return err
	}

	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.Close()

	users, err := resolveUsers(cmd, rt)
	if err != nil {
		return err
	}

	backfiller := worktime.NewBackfiller(rt.store, rt.rules, rt.logger,
		worktime.WithRunStore(rt.store),
		worktime.WithConcurrency(rt.cfg.BackfillConcurrency),
	)
	results, err := backfiller.RunMany(cmd.Context(), users, period)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.PartialFailure() {
			failed++
		}
	}
	if err := printJSON(results); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d users had failing days", failed, len(results))
	}
	return nil
}

func runIntegrity(cmd *cobra.Command, args []string) error {
	if windowDays <= 0 {
		return errors.New("--days must be positive")
	}

	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.Close()

	users, err := resolveUsers(cmd, rt)
	if err != nil {
		return err
	}

	now := time.Now()
	period := generic.LastDays(rt.rules.DayOf(now), windowDays)
	validator := worktime.NewIntegrityValidator(rt.store, rt.rules)

	reports := make([]worktime.Report, 0, len(users))
	withErrors := 0
	for _, u := range users {
		report, err := validator.Check(cmd.Context(), u, period, now)
		if err != nil {
			return fmt.Errorf("check %s: %w", u, err)
		}
		if report.Status == worktime.StatusWithErrors {
			withErrors++
		}
		reports = append(reports, report)
	}
	rt.logger.Info("integrity check completed",
		zap.Int("users", len(reports)),
		zap.Int("with_errors", withErrors))
	return printJSON(reports)
}

// resolveUsers returns the --user values, or every known user when none
// were given.
func resolveUsers(cmd *cobra.Command, rt *app) ([]generic.UserID, error) {
	if len(targetUsers) > 0 {
		users := make([]generic.UserID, len(targetUsers))
		for i, u := range targetUsers {
			users[i] = generic.UserID(u)
		}
		return users, nil
	}
	return rt.store.Users(cmd.Context())
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
