package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"identix/internal/credential/token"
	jwttoken "identix/internal/jwt_token"
	"identix/internal/platform/config"
	"identix/pkg/platform/middleware/auth"
)

func newTokenCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Generate credential lookup tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be positive")
			}
			gen := token.NewGenerator()
			tokens := make([]string, 0, count)
			for range count {
				tok, err := gen.New()
				if err != nil {
					return err
				}
				tokens = append(tokens, string(tok))
			}

			w := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(w, map[string]any{"tokens": tokens})
			}
			for _, tok := range tokens {
				fmt.Fprintln(w, tok)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of tokens")
	return cmd
}

type issuerTokenOutput struct {
	Token     string `json:"token"`
	IssuerID  string `json:"issuer_id"`
	Role      string `json:"role"`
	ExpiresIn string `json:"expires_in"`
}

// newIssuerTokenCmd mints bearer tokens signed with ISSUER_JWT_SECRET, for
// local development and smoke tests.
func newIssuerTokenCmd() *cobra.Command {
	var (
		issuerID string
		role     string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "issuer-token",
		Short: "Mint an issuer bearer token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromEnv()
			if ttl <= 0 {
				ttl = cfg.Issuer.TokenTTL
			}
			svc := jwttoken.NewJWTService(cfg.Issuer.JWTSecret, cfg.Issuer.TokenIssuer, ttl)
			signed, err := svc.GenerateIssuerToken(issuerID, role)
			if err != nil {
				return err
			}

			out := issuerTokenOutput{Token: signed, IssuerID: issuerID, Role: role, ExpiresIn: ttl.String()}
			w := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(w, out)
			}
			fmt.Fprintln(w, signed)
			return nil
		},
	}
	cmd.Flags().StringVar(&issuerID, "issuer-id", "", "Issuer ID recorded on issued credentials")
	cmd.Flags().StringVar(&role, "role", auth.RoleIssuer, "Role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default ISSUER_TOKEN_TTL)")
	_ = cmd.MarkFlagRequired("issuer-id")
	return cmd
}
