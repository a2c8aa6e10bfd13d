package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/singhnitish007/Clawbid.org/internal/auth"
	"github.com/singhnitish007/Clawbid.org/internal/domain"
)

// newTokenCmd issues bearer tokens signed with the configured secret, for
// local agents and smoke tests.
func newTokenCmd(root *rootOptions) *cobra.Command {
	var (
		agentID, externalID, name string
		ttl                       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed agent token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := root.load(cmd)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("JWT_SECRET is required to issue tokens")
			}
			if agentID == "" {
				return errors.New("--agent-id is required")
			}

			agent := domain.Agent{ID: agentID, ExternalID: externalID, Name: name}
			token, err := auth.NewVerifier(cfg.Auth.JWTSecret).Sign(agent, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&agentID, "agent-id", "", "agent id carried in the token")
	cmd.Flags().StringVar(&externalID, "openclaw-id", "", "external OpenClaw agent id")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
