package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/galette-community/plugin-oauth2/internal/security"
)

const (
	algoBcrypt   = "bcrypt"
	algoArgon2id = "argon2id"
)

func newHashSecretCmd() *cobra.Command {
	var (
		algo string
		cost int
	)
	cmd := &cobra.Command{
		Use:   "hash-secret",
		Short: "Hash a secret read from stdin",
		Long: `Hash a secret read from stdin.

bcrypt hashes go to the password_hash key of the client registry's global
entry, or to ADMIN_PASSWORD_HASH. argon2id hashes are accepted by
ADMIN_PASSWORD_HASH only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}
			hash, err := hashSecret(algo, secret, cost)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
	cmd.Flags().StringVar(&algo, "algo", algoBcrypt, "Hash algorithm: bcrypt or argon2id")
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}

// readSecret reads the first line of r.
func readSecret(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	secret, _, _ := strings.Cut(string(data), "\n")
	secret = strings.TrimSuffix(secret, "\r")
	if secret == "" {
		return "", errors.New("empty secret on stdin")
	}
	return secret, nil
}

func hashSecret(algo, secret string, cost int) (string, error) {
	switch algo {
	case algoBcrypt:
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
		if err != nil {
			return "", fmt.Errorf("bcrypt: %w", err)
		}
		return string(hash), nil
	case algoArgon2id:
		return security.HashPassword(secret)
	default:
		return "", fmt.Errorf("unknown algorithm %q", algo)
	}
}
