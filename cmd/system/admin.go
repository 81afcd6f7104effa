package system

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/carelink/carelink_backend/config"
	"github.com/carelink/carelink_backend/internal/repo"
	"github.com/carelink/carelink_backend/internal/service/profile"
	"github.com/carelink/carelink_backend/pkg/database"
)

func NewBootstrapAdminCommand() *cobra.Command {
	var (
		userID string
		email  string
	)

	cmd := &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Grant the admin role to an existing auth user",
		Long: `Grant the admin role to a user of the hosted auth provider.

The role grant is what matters; if the profile row cannot be written the
error is logged and the command still succeeds.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user-id: %w", err)
			}
			if strings.TrimSpace(email) == "" {
				return fmt.Errorf("--email is required")
			}

			cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
			if err != nil {
				return fmt.Errorf("failed to get config flag: %w", err)
			}
			cfg, err := config.ReadConfig(filepath.Dir(cfgPath))
			if err != nil {
				return fmt.Errorf("failed to read config: %w", err)
			}

			timeout := time.Duration(cfg.Server.TimeoutSeconds) * time.Second
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			drv, err := database.NewDriver(cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			client := repo.NewClient(drv)
			defer client.Close()

			auth, cleanup, err := openAuthorization(cfg)
			if err != nil {
				return err
			}
			defer cleanup(context.Background())

			if err := profile.New(client.Profile, auth).BootstrapAdmin(ctx, uid, email); err != nil {
				return fmt.Errorf("failed to grant admin: %w", err)
			}

			fmt.Printf("Granted admin to %s (%s).\n", uid, email)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "auth provider user id (uuid)")
	cmd.Flags().StringVar(&email, "email", "", "user email")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}
