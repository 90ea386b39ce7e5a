package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/festlist/internal/server"
	"github.com/desertthunder/festlist/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// AuthSpotify performs the OAuth2 authorization flow for Spotify.
//
// Starts a local HTTP server, opens a browser for user authorization, and
// exchanges the auth code for tokens persisted to the config file.
func (r *Runner) AuthSpotify(ctx context.Context, cmd *cli.Command) error {
	if configPath := cmd.String("config"); configPath != "" {
		r.configPath = configPath
	}

	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in config.toml", shared.ErrMissingCredentials)
	}

	token, err := r.doOAuth(ctx)
	if err != nil {
		return err
	}

	if err := r.saveTokens(token); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", r.configPath)
	r.writePlain("You can now use: festlist playlist create --image flyer.jpg\n")

	return nil
}

// AuthStatus reports the stored token state and verifies it against the catalog.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	token := r.config.Credentials.Spotify.Token()
	if token == nil {
		r.writePlain("Not authorized. Run 'festlist auth spotify' to log in.\n")
		return nil
	}

	r.writePlain("Stored token found")
	if !token.Expiry.IsZero() {
		if time.Now().After(token.Expiry) {
			r.writePlain(" (expired %s)", token.Expiry.Format(time.RFC3339))
		} else {
			r.writePlain(" (expires %s)", token.Expiry.Format(time.RFC3339))
		}
	}
	r.writePlain("\n")

	if r.catalog == nil {
		return nil
	}

	user, err := r.catalog.CurrentUser(ctx, token.AccessToken)
	if err != nil {
		r.writePlain("✗ Token rejected by %s: %v\n", r.catalog.Name(), err)
		return nil
	}

	r.writePlain("✓ Authorized as %s", user.ID)
	if user.DisplayName != "" {
		r.writePlain(" (%s)", user.DisplayName)
	}
	r.writePlain("\n")

	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := r.spotify.GetAuthURL(state)
	oauthHandler := server.NewOAuthHandler(r.spotify.OAuthConfig(), state)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	serverAddr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
		// Got result from callback
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("no token received")
	}

	return result.Token, nil
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:  "spotify",
				Usage: "Authenticate with Spotify using OAuth2",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.AuthSpotify,
			},
			{
				Name:   "status",
				Usage:  "Check current authentication state",
				Action: r.AuthStatus,
			},
		},
	}
}
