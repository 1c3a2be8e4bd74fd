package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kgm-ocak/ocak-map/internal/auth"
	"github.com/kgm-ocak/ocak-map/internal/store"
)

var (
	seedAdminEmail    string
	seedAdminPassword string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the province reference data and optionally an admin account",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if (seedAdminEmail == "") != (seedAdminPassword == "") {
			return eris.New("--admin-email and --admin-password must be given together")
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := store.Seed(ctx, st)
		if err != nil {
			return eris.Wrap(err, "seed provinces")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "provinces: %d\n", n) //nolint:errcheck

		if seedAdminEmail == "" {
			return nil
		}
		admin, err := auth.NewService(st, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL()).
			EnsureAdmin(ctx, seedAdminEmail, seedAdminPassword)
		if err != nil {
			return eris.Wrap(err, "seed admin")
		}
		zap.L().Info("admin account ready", zap.Int64("user_id", admin.ID))
		fmt.Fprintf(cmd.OutOrStdout(), "admin: %s\n", admin.Email) //nolint:errcheck
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedAdminEmail, "admin-email", "", "email of an admin account to create or promote")
	seedCmd.Flags().StringVar(&seedAdminPassword, "admin-password", "", "password for a newly created admin account")
	rootCmd.AddCommand(seedCmd)
}
