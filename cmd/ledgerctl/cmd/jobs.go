package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/saadkhan2003/masjid-ledger/internal/database"
	"github.com/saadkhan2003/masjid-ledger/internal/ledger"
	"github.com/saadkhan2003/masjid-ledger/internal/member"
	"github.com/saadkhan2003/masjid-ledger/internal/money"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := database.New(configFrom(cmd).ConnectionString())
		if err != nil {
			return err
		}
		defer db.Close()

		if err := database.Migrate(db); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")

		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Raise this month's dues debt for every active member",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Ledger.GenerateMonthlyDebts(cmd.Context())
		printGeneration(cmd.OutOrStdout(), res)

		return err
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Backfill monthly debts for every active member since they joined",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Ledger.InitializeDebtSystem(cmd.Context())
		printGeneration(cmd.OutOrStdout(), res)

		return err
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Mark pending debts past their due date as overdue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Ledger.UpdateOverdueDebts(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "marked overdue: %d\n", n)

		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduled job once: generate, sweep and recalculate",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		rep, err := a.Scheduler.RunOnce(cmd.Context())
		printRunReport(cmd.OutOrStdout(), rep)

		return err
	},
}

var recalcCmd = &cobra.Command{
	Use:   "recalc [member-id]",
	Short: "Recompute cached total debt for one member, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 1 {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid member id: %w", err)
			}

			total, err := a.Ledger.UpdateMemberTotalDebt(cmd.Context(), id)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s total debt: %s\n", id, money.Display(total))

			return nil
		}

		members, err := a.Members.List(cmd.Context(), member.ListFilter{})
		if err != nil {
			return err
		}

		var errs []error

		for _, m := range members {
			if _, err := a.Ledger.UpdateMemberTotalDebt(cmd.Context(), m.ID); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", m.Name, err))
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "recalculated: %d, failed: %d\n", len(members)-len(errs), len(errs))

		return errors.Join(errs...)
	},
}

func printGeneration(w io.Writer, res *ledger.GenerationResult) {
	if res == nil {
		return
	}

	fmt.Fprintf(w, "created: %d, existing: %d, skipped: %d, failed: %d\n",
		res.Created, res.Existing, res.Skipped, len(res.Failures))

	for _, f := range res.Failures {
		fmt.Fprintf(w, "  %s\n", f.Error())
	}
}

func printRunReport(w io.Writer, rep *ledger.RunReport) {
	if rep == nil {
		return
	}

	printGeneration(w, rep.Generation)
	fmt.Fprintf(w, "marked overdue: %d\n", rep.MarkedOverdue)
	fmt.Fprintf(w, "recalculated: %d, failed: %d\n", rep.Recalculated, rep.RecalcFailed)
	fmt.Fprintf(w, "took: %s\n", rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond))
}
