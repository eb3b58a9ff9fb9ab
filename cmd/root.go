package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/sells-group/salestax-cli/internal/config"
	"github.com/sells-group/salestax-cli/internal/report"
	"github.com/sells-group/salestax-cli/internal/session"
	"github.com/sells-group/salestax-cli/internal/taxtable"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "salestax",
	Short: "California sales tax quotes by ZIP code",
	Long: "Looks up a ZIP code's city and county, matches them against the CDTFA " +
		"rate table, and reports the tax owed on a payment with its state, county and city remittance.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	RunE: runSession,
}

// runSession runs the interactive dialogue on stdin/stdout.
func runSession(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate("session"); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := initEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Scraping tax rates from CDTFA website...")
	svc := env.Service(ctx)

	format, err := report.ParseFormat(cfg.Report.Format)
	if err != nil {
		return err
	}

	s := session.New(svc, cmd.InOrStdin(), out,
		session.WithPrompts(promptsEnabled(cfg.Session.Prompts, stdinIsTerminal)),
		session.WithFormat(format),
	)
	err = s.Run(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, taxtable.ErrEmptyTaxTable):
		// The message has been printed; this is a normal exit.
		zap.L().Error("no tax data available", zap.String("source", env.Rates.Name()))
		return nil
	case ctx.Err() != nil:
		return nil
	default:
		return err
	}
}

// promptsEnabled resolves the session.prompts setting.
func promptsEnabled(mode string, isTerminal func() bool) bool {
	switch mode {
	case "never":
		return false
	case "auto":
		return isTerminal()
	default:
		return true
	}
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
