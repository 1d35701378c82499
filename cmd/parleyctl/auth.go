package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matheus3301/parley/internal/auth"
	"github.com/matheus3301/parley/internal/chat"
	"github.com/matheus3301/parley/internal/store"
)

var (
	loginToken string
	loginUser  string
)

func init() {
	loginCmd.Flags().StringVar(&loginToken, "token", "", "bearer token issued by the server")
	loginCmd.Flags().StringVar(&loginUser, "user", "", "user id, when the token has no sub claim")
	_ = loginCmd.MarkFlagRequired("token")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a session for the profile",
	Long:  "Store a bearer token for the profile. The user id is read from the token's\nsub claim unless --user is given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := auth.SessionFromToken(loginToken, loginUser)
		if err != nil {
			return err
		}
		return withExclusiveStore(func(db *store.DB) error {
			if err := newProvider(db).Set(sess); err != nil {
				return fmt.Errorf("store session: %w", err)
			}
			if jsonFlag {
				return printJSON(cmd, map[string]string{"profile": activeProfile(), "user": sess.UserID})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s on profile %s\n", sess.UserID, activeProfile())
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExclusiveStore(func(db *store.DB) error {
			p := newProvider(db)
			found, err := p.Load()
			if err != nil {
				return err
			}
			if found {
				p.Invalidate("signed out via parleyctl")
			}
			if jsonFlag {
				return printJSON(cmd, map[string]bool{"removed": found})
			}
			if found {
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "No stored session")
			}
			return nil
		})
	},
}

func newProvider(db *store.DB) *auth.Provider {
	return auth.NewProvider(db, nil, zap.NewNop())
}

func storedSession(db *store.DB) (chat.Session, bool, error) {
	p := newProvider(db)
	found, err := p.Load()
	if err != nil || !found {
		return chat.Session{}, false, err
	}
	sess, ok := p.Session()
	return sess, ok, nil
}
