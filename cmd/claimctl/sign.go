package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"claimgate/internal/rulepack"
)

var rulePackDir string

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Rule-pack signature operations",
}

var signGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Compute and write the signature manifest for every rule pack",
	RunE: func(cmd *cobra.Command, args []string) error {
		manifest, err := rulepack.Generate(rulePackDir)
		if err != nil {
			return err
		}
		fmt.Printf("signed %d rule packs in %s\n", len(manifest.Files), rulePackDir)
		return nil
	},
}

var signVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify every rule pack against the signature manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := rulepack.Verify(rulePackDir); err != nil {
			return fmt.Errorf("rule pack verification failed: %w", err)
		}
		fmt.Printf("rule packs in %s verified\n", rulePackDir)
		return nil
	},
}

func init() {
	signCmd.PersistentFlags().StringVar(&rulePackDir, "dir", "rulepacks", "rule pack directory")
	signCmd.AddCommand(signGenerateCmd)
	signCmd.AddCommand(signVerifyCmd)
	rootCmd.AddCommand(signCmd)
}
