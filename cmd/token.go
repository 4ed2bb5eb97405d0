package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/auth"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/config"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/repository"
)

// tokenCmd mints an access token. Identity lives with an upstream provider
// in production; this is for operators and local testing.
func tokenCmd() *cobra.Command {
	var (
		userID   string
		role     string
		email    string
		name     string
		phone    string
		ttl      time.Duration
		register bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := model.Role(role)
			if !r.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			if userID == "" {
				userID = uuid.NewString()
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			secret := cfg.JWTSecret
			if secret == "" {
				if secret, err = promptSecret(); err != nil {
					return err
				}
			}
			if ttl == 0 {
				ttl = time.Duration(cfg.JWTExpireMin) * time.Minute
			}

			if register {
				if err := registerUser(&model.User{
					ID:        userID,
					Name:      name,
					Email:     email,
					Phone:     phone,
					Role:      r,
					CreatedAt: time.Now().UTC(),
				}); err != nil {
					return err
				}
			}

			tok, err := auth.NewIssuer(secret).Sign(auth.Identity{UserID: userID, Role: r, Email: email}, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id (random when empty)")
	cmd.Flags().StringVar(&role, "role", string(model.RoleUser), "Role: user, admin, site_manager or investor")
	cmd.Flags().StringVar(&email, "email", "", "Email, used for notifications")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&phone, "phone", "", "Phone number")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to JWT_EXPIRE_MIN)")
	cmd.Flags().BoolVar(&register, "register", false, "Also store the user profile in the database")
	return cmd
}

func promptSecret() (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("JWT_SECRET is required")
	}
	fmt.Fprint(os.Stderr, "JWT secret: ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	secret := strings.TrimSpace(string(b))
	if secret == "" {
		return "", fmt.Errorf("JWT secret is required")
	}
	return secret, nil
}

func registerUser(u *model.User) error {
	ctx := context.Background()
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.pool.Close()

	if err := repository.NewUserRepository(rt.pool).Upsert(ctx, u); err != nil {
		return err
	}
	rt.log.Info().Str("user", u.ID).Str("role", string(u.Role)).Msg("user registered")
	return nil
}
