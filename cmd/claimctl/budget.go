package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"claimgate/internal/budget"
	"claimgate/internal/policy"
	dErrors "claimgate/pkg/domain-errors"
)

var measurementsPath string

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Latency budget operations",
}

var budgetCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Gate the release on per-route latency budgets",
	Long: `Projects each route's latency as the sum of its transforms' measured p95
values (from a measurements JSON file, transform name to milliseconds) and
fails when any route exceeds its declared budget. Transforms without a
measurement use a fixed conservative estimate.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := policy.Parse(policyPath)
		if err != nil {
			return err
		}
		if err := doc.Validate(func(name string) bool { return registeredTransforms[name] }); err != nil {
			return err
		}

		measurements, err := loadMeasurements(measurementsPath)
		if err != nil {
			return err
		}

		report := budget.Check(doc, measurements)
		for _, route := range report.Routes {
			fmt.Println(route.Summarize())
		}
		if !report.Pass() {
			return dErrors.Newf(dErrors.CodeBudgetExceeded, "%d route(s) over latency budget", len(report.Failures()))
		}
		return nil
	},
}

func loadMeasurements(path string) (map[string]float64, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading measurements %s: %w", path, err)
	}
	var measurements map[string]float64
	if err := json.Unmarshal(data, &measurements); err != nil {
		return nil, fmt.Errorf("parsing measurements %s: %w", path, err)
	}
	return measurements, nil
}

func init() {
	budgetCmd.PersistentFlags().StringVar(&policyPath, "policy", "configs/policy.yaml", "policy document path")
	budgetCmd.PersistentFlags().StringVar(&measurementsPath, "measurements", "", "p95 measurements JSON file")
	budgetCmd.AddCommand(budgetCheckCmd)
	rootCmd.AddCommand(budgetCmd)
}
