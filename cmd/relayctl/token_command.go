package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"relayfeed/internal/handler/http/auth"
)

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var subject, role string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the admin API (signed with JWT_SECRET)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := []byte(ctx.ensureConfig().JWTSecret)
			if len(secret) == 0 {
				return errors.New("JWT_SECRET is not set")
			}
			if err := auth.ValidateSecret(secret); err != nil {
				return err
			}
			if role != auth.RoleAdmin && role != auth.RoleViewer {
				return fmt.Errorf("role must be %s or %s", auth.RoleAdmin, auth.RoleViewer)
			}
			if ttl <= 0 {
				return errors.New("ttl must be positive")
			}
			token, err := auth.IssueToken(secret, subject, role, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "Token subject")
	cmd.Flags().StringVar(&role, "role", auth.RoleAdmin, "Token role (admin or viewer)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
