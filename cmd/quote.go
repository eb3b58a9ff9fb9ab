package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/salestax-cli/internal/report"
)

var quoteOutput string

var quoteCmd = &cobra.Command{
	Use:   "quote ZIP PAYMENT",
	Short: "Quote the sales tax on one payment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("quote"); err != nil {
			return err
		}
		format, err := outputFormat(quoteOutput)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		q, err := env.Service(ctx).Quote(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		return report.WriteQuote(cmd.OutOrStdout(), q, format)
	},
}

// outputFormat returns the --output flag when set, else the configured format.
func outputFormat(flag string) (report.Format, error) {
	if flag != "" {
		return report.ParseFormat(flag)
	}
	return report.ParseFormat(cfg.Report.Format)
}

func init() {
	quoteCmd.Flags().StringVarP(&quoteOutput, "output", "o", "", "output format: text, table, json or yaml (default from config)")
	rootCmd.AddCommand(quoteCmd)
}
