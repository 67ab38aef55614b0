package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/reelx/internal/server"
	"github.com/desertthunder/reelx/internal/services"
	"github.com/desertthunder/reelx/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// AuthLogin signs in with a username and password, asking for a second factor when the
// account requires one. With --browser the login completes on the web instead.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("browser") {
		return r.browserLogin(ctx)
	}

	c, err := r.connect()
	if err != nil {
		return err
	}

	username := cmd.String("username")
	if username == "" {
		if username, err = r.prompt("Username"); err != nil {
			return err
		}
	}
	password := cmd.String("password")
	if password == "" {
		if password, err = r.prompt("Password"); err != nil {
			return err
		}
	}

	r.logger.Info("logging in", "username", username)
	challenge, err := c.auth.Login(ctx, username, password)
	if err != nil {
		return failure("login failed", err)
	}

	if challenge != nil {
		code := cmd.String("code")
		if code == "" {
			label := "Verification code"
			if len(challenge.Methods) > 0 {
				label += " (" + strings.Join(challenge.Methods, ", ") + ")"
			}
			if code, err = r.prompt(label); err != nil {
				return fmt.Errorf("%w: pass --code or enter it when asked", shared.ErrMFARequired)
			}
		}
		if err := c.auth.VerifyMFA(ctx, challenge, code); err != nil {
			return failure("verification failed", err)
		}
	}

	return r.writePlain("✓ Logged in as %s\n", username)
}

// browserLogin waits for the web login to redirect a credential to a local callback.
func (r *Runner) browserLogin(ctx context.Context) error {
	c, err := r.connect()
	if err != nil {
		return err
	}

	cfg := r.config.Auth
	login := server.BrowserLogin{
		LoginURL: cfg.LoginURL,
		Addr:     cfg.CallbackAddr,
		Timeout:  cfg.BrowserLoginTimeout(),
		Logger:   shared.WithLogger(r.logger, "component", "login"),
		Open: func(authURL string) error {
			r.writePlain("Finish signing in at:\n  %s\n", authURL)
			return r.openURL(authURL)
		},
	}
	if cfg.UsesOAuth2() {
		login.OAuth = &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{AuthURL: cfg.LoginURL, TokenURL: cfg.TokenURL},
		}
	}

	cred, err := login.Run(ctx)
	if err != nil {
		return failure("browser login failed", err)
	}
	if err := c.store.Set(cred); err != nil {
		return err
	}

	r.logger.Info("logged in through browser")
	return r.writePlain("✓ Logged in\n")
}

// AuthLogout clears the stored credential.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	c, err := r.connect()
	if err != nil {
		return err
	}
	if err := c.auth.Logout(); err != nil {
		return err
	}
	return r.writePlain("✓ Logged out\n")
}

// AuthStatus reports the stored credential. With --check it also makes an authenticated
// call, which refreshes an expired access token on the way.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	c, err := r.connect()
	if err != nil {
		return err
	}

	cred, ok := c.store.Get()
	status := struct {
		Authenticated bool `json:"authenticated"`
		CanRefresh    bool `json:"can_refresh"`
		Verified      bool `json:"verified,omitempty"`
	}{Authenticated: ok, CanRefresh: cred.RefreshToken != ""}

	if ok && cmd.Bool("check") {
		if _, err := c.watchlists.Lists(ctx); err != nil {
			return failure("session check failed", err)
		}
		_, status.Authenticated = c.store.Get()
		status.Verified = status.Authenticated
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	if !status.Authenticated {
		return r.writePlain("✗ Not logged in. Run 'reelx auth login'.\n")
	}
	r.writePlain("✓ Logged in\n")
	if status.CanRefresh {
		r.writePlain("Refresh token: stored\n")
	} else {
		r.writePlain("Refresh token: none, you will need to log in again when the session ends\n")
	}
	if status.Verified {
		r.writePlain("Server: session accepted\n")
	}
	return nil
}

// AuthRegister creates an account.
func (r *Runner) AuthRegister(ctx context.Context, cmd *cli.Command) error {
	c, err := r.connect()
	if err != nil {
		return err
	}

	reg := services.Registration{
		Username: cmd.String("username"),
		Email:    cmd.String("email"),
		Password: cmd.String("password"),
	}
	if reg.Password == "" {
		if reg.Password, err = r.prompt("Password"); err != nil {
			return err
		}
	}

	if err := c.auth.Register(ctx, reg); err != nil {
		return failure("registration failed", err)
	}
	r.writePlain("✓ Account %s created\n", reg.Username)
	return r.writePlain("Check %s for a verification link, then run 'reelx auth verify <token>'.\n", reg.Email)
}

// AuthVerify confirms an email address.
func (r *Runner) AuthVerify(ctx context.Context, cmd *cli.Command) error {
	c, err := r.connect()
	if err != nil {
		return err
	}
	if err := c.auth.VerifyEmail(ctx, cmd.StringArg("token")); err != nil {
		return failure("verification failed", err)
	}
	return r.writePlain("✓ Email verified\n")
}

// AuthResetRequest asks the backend to send a password reset email.
func (r *Runner) AuthResetRequest(ctx context.Context, cmd *cli.Command) error {
	c, err := r.connect()
	if err != nil {
		return err
	}
	if err := c.auth.RequestPasswordReset(ctx, cmd.StringArg("email")); err != nil {
		return failure("reset request failed", err)
	}
	return r.writePlain("✓ If the address is registered, a reset link is on its way\n")
}

// AuthResetConfirm sets a new password with a reset token.
func (r *Runner) AuthResetConfirm(ctx context.Context, cmd *cli.Command) error {
	c, err := r.connect()
	if err != nil {
		return err
	}

	password := cmd.String("password")
	if password == "" {
		if password, err = r.prompt("New password"); err != nil {
			return err
		}
	}

	if err := c.auth.ConfirmPasswordReset(ctx, cmd.StringArg("token"), password); err != nil {
		return failure("password reset failed", err)
	}
	return r.writePlain("✓ Password updated. Run 'reelx auth login' to sign in.\n")
}

func requireArg(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s", shared.ErrMissingArgument, name)
	}
	return nil
}
