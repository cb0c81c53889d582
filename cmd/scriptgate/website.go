package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var websiteCmd = &cobra.Command{
	Use:   "website",
	Short: "Manage protected websites",
}

var websiteAddFlags struct {
	clientConfig
	name string
	url  string
}

var websiteAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a website",
	RunE:  runWebsiteAdd,
}

var websiteListFlags struct {
	clientConfig
}

var websiteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered websites",
	RunE:  runWebsiteList,
}

func init() {
	rootCmd.AddCommand(websiteCmd)
	websiteCmd.AddCommand(websiteAddCmd)
	websiteCmd.AddCommand(websiteListCmd)

	addClientFlags(websiteAddCmd, &websiteAddFlags.clientConfig)
	websiteAddCmd.Flags().StringVar(&websiteAddFlags.name, "name", "", "website display name")
	websiteAddCmd.Flags().StringVar(&websiteAddFlags.url, "url", "", "website URL")
	websiteAddCmd.MarkFlagRequired("name")
	websiteAddCmd.MarkFlagRequired("url")

	addClientFlags(websiteListCmd, &websiteListFlags.clientConfig)
}

func runWebsiteAdd(cmd *cobra.Command, args []string) error {
	c, err := websiteAddFlags.newClient()
	if err != nil {
		return err
	}

	resp, err := c.CreateWebsite(websiteAddFlags.name, websiteAddFlags.url)
	if err != nil {
		return err
	}

	fmt.Printf("Website registered: %s\n", resp.ID)
	fmt.Printf("  name: %s\n", resp.Name)
	fmt.Printf("  url:  %s\n", resp.URL)
	return nil
}

func runWebsiteList(cmd *cobra.Command, args []string) error {
	c, err := websiteListFlags.newClient()
	if err != nil {
		return err
	}

	resp, err := c.ListWebsites()
	if err != nil {
		return err
	}

	if len(resp.Websites) == 0 {
		fmt.Println("No websites registered.")
		return nil
	}

	fmt.Printf("%-36s  %-20s  %-8s  %-19s  %s\n", "ID", "NAME", "STATUS", "CREATED", "URL")
	for _, w := range resp.Websites {
		createdAt, _ := time.Parse(time.RFC3339, w.CreatedAt)
		fmt.Printf("%-36s  %-20s  %-8s  %-19s  %s\n",
			w.ID, w.Name, w.Status, createdAt.Format("2006-01-02 15:04:05"), w.URL)
	}
	return nil
}
