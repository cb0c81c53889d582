package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var showFlags struct {
	clientConfig
}

var showCmd = &cobra.Command{
	Use:   "show <website-id>",
	Short: "Show a website's current token and security report",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
	addClientFlags(showCmd, &showFlags.clientConfig)
}

func runShow(cmd *cobra.Command, args []string) error {
	c, err := showFlags.newClient()
	if err != nil {
		return err
	}

	resp, err := c.GetToken(args[0])
	if err != nil {
		return err
	}

	t := resp.Token
	fmt.Printf("Token: %s\n", t.TokenID)
	fmt.Printf("  status:             %s\n", t.Status)
	fmt.Printf("  script version:     %s\n", t.ScriptVersion)
	fmt.Printf("  environment:        %s\n", t.Environment)
	fmt.Printf("  config version:     %d\n", t.ConfigVersion)
	fmt.Printf("  usage count:        %d\n", t.UsageCount)
	fmt.Printf("  regeneration count: %d\n", t.RegenerationCount)
	fmt.Printf("  created:            %s\n", t.CreatedAt)
	if t.LastUsedAt != nil {
		fmt.Printf("  last used:          %s\n", *t.LastUsedAt)
	}

	r := resp.SecurityReport
	fmt.Println()
	fmt.Printf("Security score: %d/100\n", r.SecurityScore)
	if len(r.Issues) == 0 {
		fmt.Println("No issues found.")
		return nil
	}
	fmt.Println("Issues:")
	for i, issue := range r.Issues {
		fmt.Printf("  - %s\n", issue)
		fmt.Printf("    recommendation: %s\n", r.Recommendations[i])
	}
	return nil
}
