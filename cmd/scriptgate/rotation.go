package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var rotationFlags struct {
	clientConfig
	maxAgeDays int
}

var rotationCmd = &cobra.Command{
	Use:   "rotation",
	Short: "List tokens due for proactive rotation",
	RunE:  runRotation,
}

func init() {
	rootCmd.AddCommand(rotationCmd)

	addClientFlags(rotationCmd, &rotationFlags.clientConfig)
	rotationCmd.Flags().IntVar(&rotationFlags.maxAgeDays, "max-age-days", 0, "override the policy age threshold")
}

func runRotation(cmd *cobra.Command, args []string) error {
	c, err := rotationFlags.newClient()
	if err != nil {
		return err
	}

	resp, err := c.RotationCandidates(rotationFlags.maxAgeDays)
	if err != nil {
		return err
	}

	if len(resp.Candidates) == 0 {
		fmt.Printf("No rotation candidates (max age %d days).\n", resp.MaxAgeDays)
		return nil
	}

	fmt.Printf("%-40s  %-36s  %-8s  %-4s  %s\n", "TOKEN", "WEBSITE", "PRIORITY", "AGE", "REASONS")
	for _, cand := range resp.Candidates {
		fmt.Printf("%-40s  %-36s  %-8s  %-4d  %s\n",
			cand.Token.TokenID, cand.Token.WebsiteID, cand.Priority, cand.AgeDays,
			strings.Join(cand.Reasons, "; "))
	}
	return nil
}
