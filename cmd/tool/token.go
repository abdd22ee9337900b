package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"civicf7/auth"

	"github.com/spf13/cobra"
)

var (
	tokenTTL     time.Duration
	tokenSubject string
	passwordIn   string
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin API bearer token signed with ADMIN_JWT_SECRET",
		RunE: func(cmd *cobra.Command, _ []string) error {
			subject := tokenSubject
			if subject == "" {
				subject = cfg.Admin.User
			}
			token, err := auth.IssueToken([]byte(cfg.Admin.JWTSecret), subject, []string{auth.CapManageOptions}, tokenTTL, time.Now())
			if err != nil {
				return fmt.Errorf("failed to issue token: %w", err)
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&tokenTTL, "ttl", 12*time.Hour, "Token lifetime")
	cmd.Flags().StringVar(&tokenSubject, "subject", "", "Token subject (default ADMIN_USER)")
	return cmd
}

func newHashPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password := passwordIn
			if password == "" {
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("password is required")
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return fmt.Errorf("password is required")
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Println(hash)
			return nil
		},
	}
	cmd.Flags().StringVar(&passwordIn, "password", "", "Password to hash (read from stdin when empty)")
	return cmd
}
