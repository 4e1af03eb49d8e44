package cmd

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/stepwise-app/stepwise/internal/config"
	"github.com/stepwise-app/stepwise/internal/service"
)

// TokenCmd mints session tokens in place of the identity provider, for
// local development and API testing.
func TokenCmd() *cobra.Command {
	var id service.Identity

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development session token",
		RunE: func(c *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.IsProduction() {
				return errors.New("refusing to mint tokens with APP_ENV=production")
			}
			if id.UserID == "" {
				id.UserID = "user_" + uuid.NewString()
			}

			auth := service.NewAuthService(cfg.JWTSecret, cfg.JWTExpiry, false)
			token, err := auth.GenerateJWT(id)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&id.UserID, "user", "", "user id (random when empty)")
	cmd.Flags().StringVar(&id.Email, "email", "dev@example.com", "email claim")
	cmd.Flags().StringVar(&id.FirstName, "first-name", "Dev", "given name claim")
	cmd.Flags().StringVar(&id.LastName, "last-name", "", "family name claim")

	return cmd
}
