package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/parley/internal/health"
	"github.com/matheus3301/parley/internal/lock"
	"github.com/matheus3301/parley/internal/profile"
)

const probeTimeout = 2 * time.Second

func init() {
	rootCmd.AddCommand(statusCmd)
}

type statusReport struct {
	Profile  string `json:"profile"`
	Running  bool   `json:"running"`
	PID      int    `json:"pid,omitempty"`
	Overall  string `json:"overall,omitempty"`
	Realtime string `json:"realtime,omitempty"`
	User     string `json:"user,omitempty"`
	Cached   int    `json:"cachedConversations"`
	Error    string `json:"error,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a client is running and how its realtime link is doing",
	RunE: func(cmd *cobra.Command, args []string) error {
		name := activeProfile()
		rep := statusReport{Profile: name}

		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		defer cancel()
		if h, err := health.Probe(ctx, profile.SocketPath(name)); err == nil {
			rep.Running = true
			rep.Overall = h.Overall
			rep.Realtime = h.Realtime
			rep.PID = lock.Holder(profile.Dir(name))
		}

		db, err := openStore()
		if err != nil {
			rep.Error = err.Error()
		} else {
			defer func() { _ = db.Close() }()
			if sess, ok, err := storedSession(db); err == nil && ok {
				rep.User = sess.UserID
			}
			if entries, err := db.ListEntries(); err == nil {
				rep.Cached = len(entries)
			}
		}

		if jsonFlag {
			return printJSON(cmd, rep)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Profile:   %s\n", rep.Profile)
		if rep.Running {
			fmt.Fprintf(out, "Client:    running (PID %d)\n", rep.PID)
			fmt.Fprintf(out, "Health:    %s\n", rep.Overall)
			fmt.Fprintf(out, "Realtime:  %s\n", rep.Realtime)
		} else {
			fmt.Fprintln(out, "Client:    not running")
		}
		fmt.Fprintf(out, "User:      %s\n", valueOrDefault(rep.User, "(signed out)"))
		fmt.Fprintf(out, "Cached:    %d conversation(s)\n", rep.Cached)
		if rep.Error != "" {
			fmt.Fprintf(out, "Error:     %s\n", rep.Error)
		}
		return nil
	},
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
