package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/xcode-ai/ai-gateway/internal/api/middleware"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show provider connectivity and diagnostics",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := makeRequest(http.MethodGet, "/api/status", nil, token)
		if err != nil {
			return fmt.Errorf("status failed: %w", err)
		}
		return printOutput(cmd.OutOrStdout(), resp, output)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the gateway's public configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := makeRequest(http.MethodGet, "/api/config", nil, token)
		if err != nil {
			return fmt.Errorf("config failed: %w", err)
		}
		return printOutput(cmd.OutOrStdout(), resp, output)
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send a message and print the whole answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := makeRequest(http.MethodPost, "/api/ai/chat", map[string]string{
			"message": strings.Join(args, " "),
		}, token)
		if err != nil {
			return fmt.Errorf("chat failed: %w", err)
		}
		if render, _ := cmd.Flags().GetBool("render"); render {
			return printAnswer(cmd.OutOrStdout(), resp)
		}
		return printOutput(cmd.OutOrStdout(), resp, output)
	},
}

var streamCmd = &cobra.Command{
	Use:   "stream [message]",
	Short: "Send a message and print the answer as it streams",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return streamChat(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "), token)
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an HS256 bearer token for a gateway with jwt_secret set",
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, _ := cmd.Flags().GetString("secret")
		subject, _ := cmd.Flags().GetString("subject")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if secret == "" {
			return fmt.Errorf("--secret is required")
		}

		signed, err := mintToken(secret, subject, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), signed)
		fmt.Fprintf(os.Stderr, "\nSet environment variable:\nexport GATEWAY_TOKEN=<token>\n")
		return nil
	},
}

func init() {
	chatCmd.Flags().Bool("render", false, "Render the answer as markdown instead of printing the JSON body")
	tokenCmd.Flags().String("secret", os.Getenv("JWT_SECRET"), "Server JWT secret")
	tokenCmd.Flags().String("subject", "gateway-cli", "Token subject")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
}

func mintToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
