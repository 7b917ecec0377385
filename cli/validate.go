package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/liamcoop/modelcheck/internal/logger"
	"github.com/liamcoop/modelcheck/rules"
)

// ErrChecksFailed makes a run with failures exit non-zero without the
// caller printing a redundant error.
var ErrChecksFailed = errors.New("one or more checks failed")

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a record dump against an XML rule file",
	Long: `Parse the given XML rule file, evaluate every rule against the
records read from the records file (JSON or YAML), and print one line per
check. Exits non-zero when any check fails.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().String("rules", "", "path to the XML rule file (required)")
	validateCmd.Flags().String("records", "", "path to the records file, JSON or YAML (required)")
	validateCmd.Flags().String("output", "text", "output format: text or json")
	_ = validateCmd.MarkFlagRequired("rules")
	_ = validateCmd.MarkFlagRequired("records")

	_ = viper.BindPFlag("output", validateCmd.Flags().Lookup("output"))

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	rulesPath, _ := cmd.Flags().GetString("rules")
	recordsPath, _ := cmd.Flags().GetString("records")

	xmlText, err := os.ReadFile(rulesPath)
	if err != nil {
		return fmt.Errorf("read rule file: %w", err)
	}

	records, err := LoadRecords(recordsPath)
	if err != nil {
		return err
	}

	engine, err := rules.NewEngine()
	if err != nil {
		return err
	}

	results, err := engine.Run(xmlText, records)
	if err != nil {
		return fmt.Errorf("validation aborted: %w", err)
	}

	failed := 0
	for _, result := range results {
		if result.Status == rules.StatusFailed {
			failed++
			logger.CheckFailed(result.Name, result.Message)
		} else {
			logger.CheckPassed(result.Name)
		}
	}

	if err := printResults(cmd, results, failed); err != nil {
		return err
	}
	if failed > 0 {
		return ErrChecksFailed
	}
	return nil
}

func printResults(cmd *cobra.Command, results []rules.CheckResult, failed int) error {
	out := cmd.OutOrStdout()

	if viper.GetString("output") == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	for _, result := range results {
		line := fmt.Sprintf("%-6s  %s", result.Status, result.Name)
		if result.Result != nil {
			line += fmt.Sprintf("  (count=%d)", *result.Result)
		}
		if result.Message != "" {
			line += "  " + result.Message
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "\n%d checks, %d failed\n", len(results), failed)
	return nil
}
