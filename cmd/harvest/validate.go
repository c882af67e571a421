package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yanizio/harvest/internal/rules"
	"github.com/yanizio/harvest/internal/ruleset"
	"github.com/yanizio/harvest/internal/xmldoc"
)

// errInvalidRecords makes the process exit 1 without a second error line;
// the verdicts are already printed.
var errInvalidRecords = errors.New("invalid records")

var validateCmd = &cobra.Command{
	Use:   "validate FILE...",
	Short: "Validate local ISO 19115-3 XML files",
	Long: `validate checks each FILE against the compiled-in GRDC rule set, or the
YAML rule set named by --rules, and prints one verdict per file.  The exit
status is 1 when any file is invalid.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rulesFile, _ := cmd.Flags().GetString("rules")
		workers, _ := cmd.Flags().GetInt("workers")
		asJSON, _ := cmd.Flags().GetBool("json")

		set, err := ruleset.Open(rulesFile, xmldoc.DefaultNamespaces())
		if err != nil {
			return err
		}

		docs := make([][]byte, len(args))
		for i, name := range args {
			if docs[i], err = os.ReadFile(name); err != nil {
				return err
			}
		}
		results, err := set.Validator.ValidateAll(cmd.Context(), docs, workers)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			type verdict struct {
				File string `json:"file"`
				rules.Result
			}
			vs := make([]verdict, len(args))
			for i, name := range args {
				vs[i] = verdict{File: name, Result: results[i]}
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(vs); err != nil {
				return err
			}
		} else {
			for i, name := range args {
				printVerdict(out, name, results[i].Valid, results[i].Errors)
			}
			fmt.Fprintln(out, styleDim.Render("rule set "+set.Version))
		}

		for _, r := range results {
			if !r.Valid {
				return errInvalidRecords
			}
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().String("rules", "", "YAML rule set (default: compiled-in GRDC rules)")
	validateCmd.Flags().Int("workers", 4, "files validated in parallel")
	validateCmd.Flags().Bool("json", false, "print verdicts as JSON")
	rootCmd.AddCommand(validateCmd)
}
