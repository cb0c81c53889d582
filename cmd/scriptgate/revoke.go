package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var revokeFlags struct {
	clientConfig
	reason string
	actor  string
}

var revokeCmd = &cobra.Command{
	Use:   "revoke <website-id>",
	Short: "Revoke a website's active token",
	Long: `Revoke a website's active token. Revocation is terminal: the token can
never be reactivated, and a fresh generate is the only recovery path.`,
	Args: cobra.ExactArgs(1),
	RunE: runRevoke,
}

func init() {
	rootCmd.AddCommand(revokeCmd)

	addClientFlags(revokeCmd, &revokeFlags.clientConfig)
	revokeCmd.Flags().StringVar(&revokeFlags.reason, "reason", "", "reason recorded in the audit log")
	revokeCmd.Flags().StringVar(&revokeFlags.actor, "actor", "", "actor recorded in the audit log")
	revokeCmd.MarkFlagRequired("reason")
}

func runRevoke(cmd *cobra.Command, args []string) error {
	c, err := revokeFlags.newClient()
	if err != nil {
		return err
	}

	resp, err := c.RevokeToken(args[0], revokeFlags.reason, revokeFlags.actor)
	if err != nil {
		return err
	}

	fmt.Printf("Token %s revoked.\n", resp.TokenID)
	if resp.RevokedAt != nil {
		fmt.Printf("  revoked at: %s\n", *resp.RevokedAt)
	}
	return nil
}
