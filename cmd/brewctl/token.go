package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/slidecoffee/brew-service/internal/oidc"
)

// newTokenCmd mints a development token for services running with
// AUTH_JWT_SECRET.
func newTokenCmd() *cobra.Command {
	var (
		id     oidc.Identity
		secret string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an HS256 development token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				secret = os.Getenv("AUTH_JWT_SECRET")
			}
			raw, err := oidc.MintHS256([]byte(secret), id, ttl)
			if err != nil {
				return fmt.Errorf("mint token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), raw)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&id.Subject, "sub", "", "subject (user id)")
	f.StringVar(&id.Email, "email", "", "email claim")
	f.StringVar(&id.Name, "name", "", "name claim")
	f.StringVar(&id.WorkspaceID, "workspace", "", "workspace_id claim")
	f.StringVar(&id.Plan, "plan", "", "plan claim")
	f.StringVar(&id.Audience, "aud", "", "audience; must match KEYCLOAK_CLIENT_ID when set")
	f.StringVar(&secret, "secret", "", "signing secret (default $AUTH_JWT_SECRET)")
	f.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}
