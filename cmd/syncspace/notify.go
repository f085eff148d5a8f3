package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	syncspace "github.com/syncspace-hq/syncspace-go"
)

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyListCmd)
	notifyCmd.AddCommand(notifyReadCmd)
	notifyCmd.AddCommand(notifyClearCmd)
}

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Manage notifications",
}

var notifyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notifications with unread count",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()
		feed := syncspace.NewNotificationFeed(client, nil)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := feed.FetchAll(ctx); err != nil {
			return err
		}

		notifications := feed.Notifications()
		if len(notifications) == 0 {
			fmt.Println("No notifications.")
			return nil
		}
		for _, n := range notifications {
			marker := " "
			if !n.Read {
				marker = "*"
			}
			fmt.Printf("%s %-26s %-12s %s\n", marker, n.ID, n.Type, n.Message)
		}
		fmt.Printf("\n%d unread\n", feed.Unread())
		return nil
	},
}

var notifyReadCmd = &cobra.Command{
	Use:   "read <notification-id>",
	Short: "Mark a notification as read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()
		feed := syncspace.NewNotificationFeed(client, nil)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := feed.FetchAll(ctx); err != nil {
			return err
		}
		target, err := feed.MarkAsRead(ctx, args[0])
		if err != nil {
			return err
		}
		if target.Kind == syncspace.NavNone {
			fmt.Println("Marked read.")
		} else {
			fmt.Printf("Marked read. Opens: %s %s%s\n", target.Kind, target.ID, target.URL)
		}
		return nil
	},
}

var notifyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()
		feed := syncspace.NewNotificationFeed(client, nil)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := feed.ClearAll(ctx); err != nil {
			return err
		}
		fmt.Println("Notifications cleared.")
		return nil
	},
}
