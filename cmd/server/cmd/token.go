package cmd

import (
	"fmt"

	"github.com/Ycseeasy/explore-with-me/internal/auth"
	"github.com/Ycseeasy/explore-with-me/internal/domain/ids"
	"github.com/spf13/cobra"
)

func newTokenCommand(global *globalFlags) *cobra.Command {
	var (
		subject string
		role    string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token",
		Long: `Issue a JWT signed with JWT_SECRET. Private endpoints under /users/{userId}
require a token whose subject is that user id; admin tokens may act on any user.

Examples:
  server token --role admin
  server token --subject 01HZX3Q7K2M8N4P6R9S0T1V2W3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			normalized := auth.NormalizeRole(role)
			if string(normalized) != role {
				return fmt.Errorf("unknown role %q, use %q or %q", role, auth.RoleUser, auth.RoleAdmin)
			}
			if subject == "" {
				if normalized != auth.RoleAdmin {
					return fmt.Errorf("--subject is required for user tokens")
				}
				subject = ids.MustNewULID()
			}
			sub := ids.Normalize(subject)
			if err := ids.ValidateULID(sub); err != nil {
				return fmt.Errorf("--subject: %w", err)
			}

			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			manager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.Issuer)
			token, err := manager.Generate(sub, normalized)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "user id the token acts as (generated for admin tokens when empty)")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleUser), "token role, user or admin")
	return cmd
}
