package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/meatandeat/shopguard/validate"
)

var passwordJSON bool

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Password policy tools",
}

var passwordCheckCmd = &cobra.Command{
	Use:   "check <password>",
	Short: "Score a password against the account policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return writePasswordReport(cmd.OutOrStdout(), args[0], passwordJSON)
	},
}

func init() {
	rootCmd.AddCommand(passwordCmd)
	passwordCmd.AddCommand(passwordCheckCmd)
	passwordCheckCmd.Flags().BoolVar(&passwordJSON, "json", false, "Output the report as JSON")
}

type passwordReport struct {
	Valid bool `json:"valid"`
	validate.Report
}

func writePasswordReport(w io.Writer, pw string, asJSON bool) error {
	rep := passwordReport{Valid: validate.Password(pw), Report: validate.Strength(pw)}
	if asJSON {
		return json.NewEncoder(w).Encode(rep)
	}
	fmt.Fprintf(w, "Strength: %s (%d/5)\n", rep.Level, rep.Score)
	fmt.Fprintf(w, "Accepted: %t\n", rep.Valid)
	for _, c := range []struct {
		name string
		ok   bool
	}{
		{"at least 8 characters", rep.Checks.Length},
		{"lowercase letter", rep.Checks.Lowercase},
		{"uppercase letter", rep.Checks.Uppercase},
		{"number", rep.Checks.Number},
		{"special character", rep.Checks.Special},
	} {
		mark := "x"
		if c.ok {
			mark = "ok"
		}
		fmt.Fprintf(w, "  [%s] %s\n", mark, c.name)
	}
	return nil
}
