package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sherlockbot/sherlock/internal/history"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:   "sherlockctl",
	Short: "Administrative operations on the Sherlock conversation store",
	Long: `sherlockctl operates directly on the bot's SQLite database for
maintenance tasks: clearing a user's conversation history and inspecting
usage statistics. The bot does not need to be stopped.`,
}

var clearCmd = &cobra.Command{
	Use:   "clear <user-id> [channel-id]",
	Short: "Remove a user's history, optionally scoped to one channel",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id %q", args[0])
		}
		var channelID *int64
		if len(args) == 2 {
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid channel id %q", args[1])
			}
			channelID = &id
		}

		store, err := history.Open(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		removed, err := store.Clear(userID, channelID)
		if err != nil {
			return err
		}
		cmd.Printf("removed %d message(s)\n", removed)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <user-id>",
	Short: "Show a user's message and channel counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id %q", args[0])
		}

		store, err := history.Open(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.UserStats(userID)
		if err != nil {
			return err
		}
		cmd.Printf("messages: %d\nchannels: %d\n", stats.TotalMessages, stats.TotalChannels)
		return nil
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "sherlock.db", "path to the bot database")
	rootCmd.AddCommand(clearCmd, statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
