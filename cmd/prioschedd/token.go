package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kubev2v/prio-scheduler/internal/server"
)

func newTokenCommand(v *viper.Viper) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the job API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := setAllConfig(v, cmd.Flags()); err != nil {
				return err
			}
			secretFile := v.GetString("auth-secret-file")
			if secretFile == "" {
				return fmt.Errorf("--auth-secret-file is required")
			}
			auth, err := server.NewAuthenticatorFromFile(secretFile)
			if err != nil {
				return err
			}
			token, err := auth.Issue(subject, ttl)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("auth-secret-file", "", "File holding the HS256 token secret")
	cmd.Flags().StringVar(&subject, "subject", "prioschedd", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
