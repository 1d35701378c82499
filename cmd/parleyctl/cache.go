package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/parley/internal/store"
)

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheExportCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the local message cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached conversations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		entries, err := db.ListEntries()
		if err != nil {
			return fmt.Errorf("list cache: %w", err)
		}
		if jsonFlag {
			if entries == nil {
				entries = []store.EntrySummary{}
			}
			return printJSON(cmd, entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Cache is empty")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CONVERSATION\tMESSAGES\tSAVED")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%d\t%s\n", e.ConversationID, e.MessageCount, e.SavedAt.Local().Format(time.DateTime))
		}
		return w.Flush()
	},
}

var cacheExportCmd = &cobra.Command{
	Use:   "export <conversationId>",
	Short: "Print a cached conversation as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		entry, err := db.LoadEntry(args[0])
		if err != nil {
			return fmt.Errorf("load cache entry: %w", err)
		}
		if entry == nil {
			return fmt.Errorf("no cache entry for conversation %s", args[0])
		}
		return printJSON(cmd, struct {
			ConversationID string    `json:"conversationId"`
			SavedAt        time.Time `json:"savedAt"`
			Messages       any       `json:"messages"`
		}{entry.ConversationID, entry.SavedAt, entry.Messages})
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [conversationId]",
	Short: "Delete one cached conversation, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExclusiveStore(func(db *store.DB) error {
			if len(args) == 1 {
				found, err := db.DeleteEntry(args[0])
				if err != nil {
					return fmt.Errorf("clear cache entry: %w", err)
				}
				if !found {
					return fmt.Errorf("no cache entry for conversation %s", args[0])
				}
				if jsonFlag {
					return printJSON(cmd, map[string]int{"removed": 1})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			}
			n, err := db.DeleteAllEntries()
			if err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			if jsonFlag {
				return printJSON(cmd, map[string]int64{"removed": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d conversation(s)\n", n)
			return nil
		})
	},
}
