package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"keuangan/internal/config"
	gsheet "keuangan/internal/sheets/google"
)

func authCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "auth",
		Short: "Obtain credentials for remote backends",
	}
	c.AddCommand(authGoogleCmd())
	return c
}

func authGoogleCmd() *cobra.Command {
	var (
		port      string
		tokenFile string
		timeout   time.Duration
	)
	c := &cobra.Command{
		Use:   "google",
		Short: "Authorize the sheets backend with a Google account",
		Long: `Runs the OAuth consent flow for the client in GOOGLE_OAUTH_CLIENT_JSON or
GOOGLE_OAUTH_CLIENT_FILE and saves the user token. The client must allow the
redirect URI http://localhost:<port>/callback.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if tokenFile == "" {
				tokenFile = cfg.GoogleOAuthTokenFile
			}
			if tokenFile == "" {
				tokenFile = "token.json"
			}

			oauthCfg, err := gsheet.OAuthConfig{
				ClientJSON: cfg.GoogleOAuthClientJSON,
				ClientFile: cfg.GoogleOAuthClientFile,
			}.ClientConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			tok, err := gsheet.Authorize(ctx, oauthCfg, port, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := gsheet.SaveToken(tokenFile, tok); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved token to %s\n", tokenFile)
			return nil
		},
	}
	c.Flags().StringVar(&port, "port", "8085", "local port for the OAuth redirect")
	c.Flags().StringVar(&tokenFile, "token-file", "", "where to write the token (default GOOGLE_OAUTH_TOKEN_FILE or token.json)")
	c.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "how long to wait for consent")
	return c
}
