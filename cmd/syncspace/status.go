package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session and notification status",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		user, err := client.Session().Me(ctx)
		if err != nil {
			return fmt.Errorf("session check failed: %w", err)
		}
		fmt.Printf("Session:  %s (%s)\n", user.DisplayName, user.Username)
		fmt.Printf("API:      %s\n", client.BaseURL())

		notifications, err := client.Notifications().List(ctx)
		if err != nil {
			return fmt.Errorf("notification check failed: %w", err)
		}
		unread := 0
		for _, n := range notifications {
			if !n.Read {
				unread++
			}
		}
		fmt.Printf("Unread:   %d of %d notifications\n", unread, len(notifications))
		return nil
	},
}
