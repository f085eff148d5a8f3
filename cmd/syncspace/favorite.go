package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(favoriteCmd)
	favoriteCmd.AddCommand(favoriteAddCmd)
	favoriteCmd.AddCommand(favoriteRemoveCmd)
	favoriteCmd.AddCommand(favoriteListCmd)
}

var favoriteCmd = &cobra.Command{
	Use:     "favorite",
	Aliases: []string{"fav"},
	Short:   "Manage favorite workspaces",
}

var favoriteAddCmd = &cobra.Command{
	Use:   "add <workspace-id>",
	Short: "Add a workspace to favorites",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		for _, id := range cfg.Prefs.Favorites {
			if id == args[0] {
				fmt.Println("Already a favorite.")
				return nil
			}
		}
		cfg.Prefs.Favorites = append(cfg.Prefs.Favorites, args[0])
		if err := saveConfig(cfg); err != nil {
			return err
		}
		fmt.Printf("Added %s to favorites.\n", args[0])
		return nil
	},
}

var favoriteRemoveCmd = &cobra.Command{
	Use:   "remove <workspace-id>",
	Short: "Remove a workspace from favorites",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		kept := cfg.Prefs.Favorites[:0]
		found := false
		for _, id := range cfg.Prefs.Favorites {
			if id == args[0] {
				found = true
				continue
			}
			kept = append(kept, id)
		}
		if !found {
			fmt.Println("Not a favorite.")
			return nil
		}
		cfg.Prefs.Favorites = kept
		if err := saveConfig(cfg); err != nil {
			return err
		}
		fmt.Printf("Removed %s from favorites.\n", args[0])
		return nil
	},
}

var favoriteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List favorite workspaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if len(cfg.Prefs.Favorites) == 0 {
			fmt.Println("No favorites.")
			return nil
		}
		for _, id := range cfg.Prefs.Favorites {
			fmt.Println(id)
		}
		return nil
	},
}
