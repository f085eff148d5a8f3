package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	syncspace "github.com/syncspace-hq/syncspace-go"
)

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login <token>",
	Short: "Store an API token and resolve the session user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token := args[0]

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		var opts []syncspace.ClientOption
		if cfg.Default.BaseURL != "" {
			opts = append(opts, syncspace.WithBaseURL(cfg.Default.BaseURL))
		}
		client := syncspace.NewClient(token, opts...)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		user, err := client.Session().Me(ctx)
		if err != nil {
			return fmt.Errorf("token validation failed: %w", err)
		}

		cfg.Auth.Token = token
		cfg.Auth.UserID = user.ID
		cfg.Auth.Username = user.Username
		cfg.Auth.DisplayName = user.DisplayName
		if err := saveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Printf("Logged in as %s (%s)\n", user.DisplayName, user.Username)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear stored authentication state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg.Auth = ConfigAuth{}
		if err := saveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Println("Logged out.")
		return nil
	},
}
