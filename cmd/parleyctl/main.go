package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matheus3301/parley/internal/lock"
	"github.com/matheus3301/parley/internal/profile"
	"github.com/matheus3301/parley/internal/store"
)

var (
	profileFlag string
	jsonFlag    bool
)

var rootCmd = &cobra.Command{
	Use:   "parleyctl",
	Short: "Inspect and manage a parley profile",
	Long:  "Control CLI for parley: probe a running client, manage the stored session and\ninspect or clear the local message cache.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return profile.ValidateName(activeProfile())
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "profile name (overrides config default)")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "output in JSON format")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func activeProfile() string {
	return profile.Resolve(profileFlag)
}

// openStore opens the profile's cache database, applying migrations.
func openStore() (*store.DB, error) {
	name := activeProfile()
	if err := profile.EnsureDir(name); err != nil {
		return nil, err
	}
	db, err := store.Open(profile.CachePath(name))
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	if _, err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate cache: %w", err)
	}
	return db, nil
}

// withExclusiveStore runs fn with the profile locked, so state is never
// rewritten underneath a running client.
func withExclusiveStore(fn func(db *store.DB) error) error {
	name := activeProfile()
	lk, err := lock.Acquire(profile.Dir(name))
	if err != nil {
		var held *lock.LockHeldError
		if errors.As(err, &held) {
			return fmt.Errorf("profile %q is open in another parley (PID %d); quit it first", name, held.PID)
		}
		return err
	}
	defer func() { _ = lk.Release() }()

	db, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return fn(db)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
