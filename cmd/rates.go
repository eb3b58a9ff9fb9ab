package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/salestax-cli/internal/report"
	"github.com/sells-group/salestax-cli/internal/taxtable"
)

var (
	ratesCounty string
	ratesCity   string
	ratesOutput string
)

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "List the loaded rate table",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("quote"); err != nil {
			return err
		}
		format, err := outputFormat(ratesOutput)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		table := taxtable.Acquire(ctx, env.Rates)
		if table.Empty() {
			return taxtable.ErrEmptyTaxTable
		}
		return report.WriteRates(cmd.OutOrStdout(), table.Filter(ratesCity, ratesCounty), format)
	},
}

func init() {
	ratesCmd.Flags().StringVar(&ratesCounty, "county", "", "only rows whose county contains this text")
	ratesCmd.Flags().StringVar(&ratesCity, "city", "", "only rows whose city contains this text")
	ratesCmd.Flags().StringVarP(&ratesOutput, "output", "o", "", "output format: text, table, json or yaml (default from config)")
	rootCmd.AddCommand(ratesCmd)
}
