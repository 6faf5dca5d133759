package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const adminPasswordEnv = "ADMIN_PASSWORD"

func newCreateAdminCommand() *cobra.Command {
	var email, fullName string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator or promote an existing account",
		Long:  "Creates an administrator account. The password is read from " + adminPasswordEnv + ".",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password := os.Getenv(adminPasswordEnv)
			if password == "" {
				return errors.New(adminPasswordEnv + " must be set")
			}

			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			user, created, err := a.auth.EnsureAdmin(cmd.Context(), email, password, fullName)
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			action := "promoted"
			if created {
				action = "created"
			}
			a.logger.Info("administrator "+action, zap.String("email", user.Email), zap.String("id", user.ID))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "administrator email")
	cmd.Flags().StringVar(&fullName, "name", "", "administrator full name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
