package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskvault/taskvault/internal/cache"
	"github.com/taskvault/taskvault/internal/client"
	"github.com/taskvault/taskvault/internal/config"
	"github.com/taskvault/taskvault/internal/controller"
)

// loadConfig builds the effective config, honoring --config.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFile(cfgFile)
	}
	return config.Load()
}

// newClient builds the archive client from config and flags.
func newClient(cmd *cobra.Command) (*client.Client, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	baseURL := cfg.Client.BaseURL
	if server, _ := cmd.Flags().GetString("server"); server != "" {
		baseURL = server
	}

	var cs *cache.Store
	if !cfg.Cache.Disabled {
		dir := cfg.Cache.Dir
		if dir == "" {
			dir = cache.DefaultDir()
		}
		cs = cache.New(nil, dir)
	}

	c, err := client.New(client.Config{
		BaseURL: baseURL,
		Timeout: cfg.Client.Timeout,
		Cache:   cs,
		Logger:  cfg.NewLogger(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create client: %w", err)
	}
	return c, cfg, nil
}

// newController builds a controller with a terminal toaster.
func newController(cmd *cobra.Command) (*controller.Controller, *client.Client, error) {
	c, cfg, err := newClient(cmd)
	if err != nil {
		return nil, nil, err
	}
	ctrl := controller.New(c, terminalToaster{}, cfg.NewLogger())
	return ctrl, c, nil
}

func projectFlag(cmd *cobra.Command) string {
	project, _ := cmd.Flags().GetString("project")
	return project
}
