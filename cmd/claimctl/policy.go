package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"claimgate/internal/policy"
)

// registeredTransforms mirrors the set wired into the server's executor.
var registeredTransforms = map[string]bool{
	"allergen_detector":    true,
	"weasel_detector":      true,
	"pii_redactor":         true,
	"disclaimer_rewriter":  true,
	"nutrition_normalizer": true,
	"recall_checker":       true,
}

var policyPath string

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Policy document operations",
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse and validate a policy document",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := policy.Parse(policyPath)
		if err != nil {
			return err
		}
		if err := doc.Validate(func(name string) bool { return registeredTransforms[name] }); err != nil {
			return fmt.Errorf("policy %s invalid: %w", policyPath, err)
		}

		routes := 0
		for _, profile := range doc.Profiles {
			routes += len(profile.Routes)
		}
		fmt.Printf("policy %s ok: version %s, %d profiles, %d routes\n",
			policyPath, doc.Version, len(doc.Profiles), routes)
		return nil
	},
}

func init() {
	policyCmd.PersistentFlags().StringVar(&policyPath, "policy", "configs/policy.yaml", "policy document path")
	policyCmd.AddCommand(policyValidateCmd)
	rootCmd.AddCommand(policyCmd)
}
