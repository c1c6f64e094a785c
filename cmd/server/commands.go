package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/api"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// SERVE
// =============================================================================

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	opts := api.RouterOptions{
		CORSAllowOrigins: a.cfg.HTTP.CORSAllowOrigins,
		MetricsPath:      a.cfg.Metrics.Path,
		Logger:           a.log,
	}
	if a.metrics != nil {
		opts.MetricsHandler = a.metrics.Handler()
	}

	server := &http.Server{
		Addr:         a.cfg.Addr(),
		Handler:      api.NewRouter(a.handler, opts),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("database", a.cfg.Database.Path),
			zap.Bool("metrics", a.metrics != nil))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.log.Info("server stopped")
	return nil
}

// =============================================================================
// GENERATE
// =============================================================================

var (
	genName     string
	genFrom     string
	genTo       string
	genOvertime []string
	genActor    string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a payroll period for all active workers",
	Long: `Creates an Open payroll period and one record per active worker,
then prints the period report as JSON.

Overtime hours are given per worker id:
  --overtime w1=10 --overtime w2=4.5`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&genName, "name", "", "period name")
	generateCmd.Flags().StringVar(&genFrom, "from", "", "first day, YYYY-MM-DD")
	generateCmd.Flags().StringVar(&genTo, "to", "", "last day, YYYY-MM-DD")
	generateCmd.Flags().StringArrayVar(&genOvertime, "overtime", nil, "overtime hours as worker=hours, repeatable")
	generateCmd.Flags().StringVar(&genActor, "actor", "", "actor id recorded in the audit log")
	_ = generateCmd.MarkFlagRequired("name")
	_ = generateCmd.MarkFlagRequired("from")
	_ = generateCmd.MarkFlagRequired("to")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	from, err := generic.ParseDate(genFrom)
	if err != nil {
		return err
	}
	to, err := generic.ParseDate(genTo)
	if err != nil {
		return err
	}
	overtime, err := parseOvertime(genOvertime)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.handler.Payroll.Run(cmd.Context(), payroll.RunInput{
		Name:          genName,
		Start:         from,
		End:           to,
		OvertimeHours: overtime,
		ActorID:       genActor,
	})
	if err != nil {
		return err
	}
	report, err := a.handler.Payroll.Report(cmd.Context(), res.Period.ID)
	if err != nil {
		return err
	}
	return printJSON(cmd, report)
}

// parseOvertime reads worker=hours pairs.
func parseOvertime(pairs []string) (map[generic.WorkerID]decimal.Decimal, error) {
	out := make(map[generic.WorkerID]decimal.Decimal, len(pairs))
	for _, p := range pairs {
		id, hours, ok := strings.Cut(p, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid --overtime %q, want worker=hours", p)
		}
		d, err := decimal.NewFromString(hours)
		if err != nil {
			return nil, fmt.Errorf("invalid --overtime %q: %w", p, err)
		}
		out[generic.WorkerID(id)] = d
	}
	return out, nil
}

// =============================================================================
// FINALIZE DAY
// =============================================================================

var (
	finDate  string
	finActor string
)

var finalizeDayCmd = &cobra.Command{
	Use:   "finalize-day",
	Short: "Finalize a production day so payroll counts its entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := generic.ParseDate(finDate)
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		day, err := a.handler.Ledger.Finalize(cmd.Context(), date, finActor)
		if err != nil {
			return err
		}
		return printJSON(cmd, day)
	},
}

func init() {
	finalizeDayCmd.Flags().StringVar(&finDate, "date", "", "production date, YYYY-MM-DD")
	finalizeDayCmd.Flags().StringVar(&finActor, "actor", "", "actor id recorded in the audit log")
	_ = finalizeDayCmd.MarkFlagRequired("date")
}

// =============================================================================
// SEED
// =============================================================================

var seedMonth string

var seedCmd = &cobra.Command{
	Use:   "seed <scenario>",
	Short: "Load a demo scenario (small-factory, payslip-walkthrough)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.handler.Seed(cmd.Context(), args[0], seedMonth)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedMonth, "month", "", "anchor month, YYYY-MM (default: current month)")
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
