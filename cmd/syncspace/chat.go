package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	syncspace "github.com/syncspace-hq/syncspace-go"
)

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.AddCommand(chatHistoryCmd)
	chatCmd.AddCommand(chatSendCmd)
	chatCmd.AddCommand(chatWatchCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Workspace chat",
}

var chatHistoryCmd = &cobra.Command{
	Use:   "history <workspace-id>",
	Short: "Print recent messages grouped by day",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()
		view := syncspace.NewConversationView(client, args[0], currentUser(), &syncspace.ConversationConfig{
			Cache: syncspace.NewMemoryStore(),
		})

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := view.LoadInitial(ctx); err != nil {
			return err
		}

		groups := syncspace.GroupMessagesByDate(view.Messages(), nil)
		if len(groups) == 0 {
			fmt.Println("No messages.")
			return nil
		}
		for _, g := range groups {
			fmt.Printf("── %s ──\n", g.Date.Format("Mon, 02 Jan 2006"))
			for _, m := range g.Messages {
				fmt.Printf("%s  %-16s %s\n", m.CreatedAt.Local().Format("15:04"), m.SenderName, m.Content)
			}
		}
		return nil
	},
}

var chatSendCmd = &cobra.Command{
	Use:   "send <workspace-id> <text>",
	Short: "Send a message to a workspace channel",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()
		view := syncspace.NewConversationView(client, args[0], currentUser(), nil)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		msg, err := view.Send(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Sent %s\n", msg.ID)
		return nil
	},
}

var chatWatchCmd = &cobra.Command{
	Use:   "watch <workspace-id>",
	Short: "Follow a workspace channel live (Ctrl-C to stop)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workspaceID := args[0]
		client := getClient()
		user := currentUser()

		rt := client.Realtime(nil)

		printer := syncspace.ListenerFunc(func(event string, payload json.RawMessage) {
			switch event {
			case syncspace.EventNewMessage:
				var m syncspace.Message
				if json.Unmarshal(payload, &m) == nil && m.WorkspaceID == workspaceID {
					fmt.Printf("%s  %-16s %s\n", m.CreatedAt.Local().Format("15:04"), m.SenderName, m.Content)
				}
			case syncspace.EventUserTyping:
				var t syncspace.TypingPayload
				if json.Unmarshal(payload, &t) == nil && t.WorkspaceID == workspaceID {
					fmt.Printf("… %s is typing\n", t.UserName)
				}
			case syncspace.EventNewNotification:
				var n syncspace.Notification
				if json.Unmarshal(payload, &n) == nil {
					fmt.Printf("[notification] %s\n", n.Message)
				}
			}
		})
		rt.On(syncspace.EventNewMessage, &printer)
		rt.On(syncspace.EventUserTyping, &printer)
		rt.On(syncspace.EventNewNotification, &printer)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := rt.Initialize(ctx, user.ID); err != nil {
			return err
		}
		defer rt.Disconnect()
		rt.JoinWorkspaceChat(workspaceID)
		fmt.Printf("Watching workspace %s as %s\n", workspaceID, user.Username)

		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				rt.LeaveWorkspaceChat(workspaceID)
				return nil
			case <-ticker.C:
				if !rt.Connected() {
					if err := rt.Reconnect(ctx); err != nil {
						return err
					}
					rt.JoinWorkspaceChat(workspaceID)
				}
			}
		}
	},
}
