package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scriptgate/scriptgate/internal/client"
)

type clientConfig struct {
	apiKey string
	apiURL string
}

func addClientFlags(cmd *cobra.Command, cfg *clientConfig) {
	cmd.Flags().StringVar(&cfg.apiKey, "api-key", os.Getenv("SCRIPTGATE_API_KEY"), "API key for authentication")
	cmd.Flags().StringVar(&cfg.apiURL, "api-url", getEnv("SCRIPTGATE_API_URL", "http://localhost:8081"), "API server URL")
}

func (cfg *clientConfig) newClient() (*client.Client, error) {
	if cfg.apiURL == "" {
		return nil, fmt.Errorf("API URL required (use --api-url flag or SCRIPTGATE_API_URL env var)")
	}
	if cfg.apiKey == "" {
		return nil, fmt.Errorf("API key required (use --api-key flag or SCRIPTGATE_API_KEY env var)")
	}
	return client.NewClient(cfg.apiURL, cfg.apiKey), nil
}
