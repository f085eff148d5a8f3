package main

import (
	"fmt"
	"os"

	syncspace "github.com/syncspace-hq/syncspace-go"
)

// getClient creates a Syncspace client authenticated with the stored token.
func getClient() *syncspace.Client {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Auth.Token == "" {
		fmt.Fprintln(os.Stderr, "No token. Run 'syncspace login <token>' first.")
		os.Exit(1)
	}

	var opts []syncspace.ClientOption
	if cfg.Default.BaseURL != "" {
		opts = append(opts, syncspace.WithBaseURL(cfg.Default.BaseURL))
	}

	return syncspace.NewClient(cfg.Auth.Token, opts...)
}

// currentUser builds the session user from stored auth state.
func currentUser() syncspace.User {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return syncspace.User{
		ID:          cfg.Auth.UserID,
		Username:    cfg.Auth.Username,
		DisplayName: cfg.Auth.DisplayName,
	}
}
