package cli

import (
	"fmt"
	"time"

	"bankcore/internal/config"
	"bankcore/internal/models"
	"bankcore/internal/utils"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().String("subject", "", "Subject (owner) ID the token is issued for")
	tokenCmd.Flags().String("role", models.RoleCustomer, "Role: customer or admin")
	tokenCmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("subject")
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token signed with JWT_SECRET",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config.LoadEnv()
		return runToken(cmd, config.Load().JWTSecret)
	},
}

func runToken(cmd *cobra.Command, secret string) error {
	subject, _ := cmd.Flags().GetString("subject")
	role, _ := cmd.Flags().GetString("role")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	if role != models.RoleCustomer && role != models.RoleAdmin {
		return fmt.Errorf("unknown role %q", role)
	}
	token, err := utils.GenerateToken(secret, subject, role, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(out(cmd), token)
	return nil
}
