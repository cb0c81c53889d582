package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scriptgate/scriptgate/internal/api"
)

var regenerateFlags struct {
	clientConfig
	scriptVersion string
	environment   string
	reason        string
	actor         string
}

var regenerateCmd = &cobra.Command{
	Use:   "regenerate <website-id>",
	Short: "Replace a website's active token",
	Long: `Replace a website's active token with a fresh one. Script version and
environment are inherited from the current token unless overridden.`,
	Args: cobra.ExactArgs(1),
	RunE: runRegenerate,
}

func init() {
	rootCmd.AddCommand(regenerateCmd)

	addClientFlags(regenerateCmd, &regenerateFlags.clientConfig)
	regenerateCmd.Flags().StringVar(&regenerateFlags.scriptVersion, "script-version", "", "override widget script version")
	regenerateCmd.Flags().StringVar(&regenerateFlags.environment, "environment", "", "override deployment environment")
	regenerateCmd.Flags().StringVar(&regenerateFlags.reason, "reason", "", "reason recorded in the audit log")
	regenerateCmd.Flags().StringVar(&regenerateFlags.actor, "actor", "", "actor recorded in the audit log")
	regenerateCmd.MarkFlagRequired("reason")
}

func runRegenerate(cmd *cobra.Command, args []string) error {
	c, err := regenerateFlags.newClient()
	if err != nil {
		return err
	}

	req := api.RegenerateTokenRequest{
		Reason: regenerateFlags.reason,
		Actor:  regenerateFlags.actor,
	}
	if regenerateFlags.scriptVersion != "" {
		req.ScriptVersion = &regenerateFlags.scriptVersion
	}
	if regenerateFlags.environment != "" {
		req.Environment = &regenerateFlags.environment
	}

	resp, err := c.RegenerateToken(args[0], req)
	if err != nil {
		return err
	}

	fmt.Printf("New token: %s\n", resp.Token.TokenID)
	fmt.Printf("  script version:     %s\n", resp.Token.ScriptVersion)
	fmt.Printf("  environment:        %s\n", resp.Token.Environment)
	fmt.Printf("  regeneration count: %d\n", resp.Token.RegenerationCount)
	fmt.Println()
	fmt.Printf("Previous token %s is now %s.\n", resp.Previous.TokenID, resp.Previous.Status)
	return nil
}
