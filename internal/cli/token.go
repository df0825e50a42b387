package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"jobflow/internal/infra/api"
)

// tokenCmd mints a bearer token signed with the configured secret, for local
// development without the identity provider.
func tokenCmd(opts *rootOptions) *cobra.Command {
	var (
		sub, email, name, role string
		ttl                    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token",
		Example: `  jobflow token --sub user-1 --email ada@example.com --name Ada
  jobflow token --sub admin-1 --role admin --ttl 1h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sub == "" {
				return errors.New("--sub is required")
			}
			cfg, _, err := opts.load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}
			tok, err := api.NewAuthManager(cfg.Auth.JWTSecret, ttl).Mint(sub, email, name, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&sub, "sub", "", "user id (token subject)")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&name, "name", "", "name claim")
	cmd.Flags().StringVar(&role, "role", "", `role claim; "admin" unlocks flag updates`)
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default auth.token_ttl)")
	return cmd
}
