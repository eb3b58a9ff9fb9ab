package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/salestax-cli/internal/report"
)

var locateOutput string

var locateCmd = &cobra.Command{
	Use:   "locate ZIP",
	Short: "Resolve a ZIP code and show its matched rate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("quote"); err != nil {
			return err
		}
		format, err := outputFormat(locateOutput)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		m, err := env.Service(ctx).Locate(ctx, args[0])
		if err != nil {
			return err
		}
		return report.WriteMatch(cmd.OutOrStdout(), m, format)
	},
}

func init() {
	locateCmd.Flags().StringVarP(&locateOutput, "output", "o", "", "output format: text, table, json or yaml (default from config)")
	rootCmd.AddCommand(locateCmd)
}
