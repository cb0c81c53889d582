package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var historyFlags struct {
	clientConfig
}

var historyCmd = &cobra.Command{
	Use:   "history <website-id>",
	Short: "Show a website's token lineage and audit trail",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	addClientFlags(historyCmd, &historyFlags.clientConfig)
}

func runHistory(cmd *cobra.Command, args []string) error {
	c, err := historyFlags.newClient()
	if err != nil {
		return err
	}

	resp, err := c.GetHistory(args[0])
	if err != nil {
		return err
	}

	if len(resp.Tokens) == 0 {
		fmt.Println("No tokens found.")
		return nil
	}

	fmt.Println("Tokens:")
	fmt.Printf("  %-40s  %-8s  %-19s  %s\n", "TOKEN", "STATUS", "CREATED", "REGENERATIONS")
	for _, t := range resp.Tokens {
		createdAt, _ := time.Parse(time.RFC3339, t.CreatedAt)
		fmt.Printf("  %-40s  %-8s  %-19s  %d\n",
			t.TokenID, t.Status, createdAt.Format("2006-01-02 15:04:05"), t.RegenerationCount)
	}

	fmt.Println()
	fmt.Println("Events:")
	fmt.Printf("  %-19s  %-15s  %-20s  %s\n", "TIME", "EVENT", "ACTOR", "REASON")
	for _, ev := range resp.Events {
		ts, _ := time.Parse(time.RFC3339, ev.Timestamp)
		fmt.Printf("  %-19s  %-15s  %-20s  %s\n",
			ts.Format("2006-01-02 15:04:05"), ev.EventType, ev.Actor, ev.Reason)
	}
	return nil
}
