package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
)

const (
	DefaultLoginPath         = "/api/auth/token/"
	mfaVerifyPath            = "/api/auth/mfa/verify/"
	registerPath             = "/api/auth/register/"
	verifyEmailPath          = "/api/auth/verify-email/"
	passwordResetPath        = "/api/auth/password-reset/"
	passwordResetConfirmPath = "/api/auth/password-reset/confirm/"
)

// MFAChallenge is returned by Login when the account requires a second factor.
type MFAChallenge struct {
	Token   string   `json:"mfa_token"`
	Methods []string `json:"methods,omitempty"`
}

// Registration is the payload for creating an account.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is either a credential or a multi-factor challenge.
type loginResponse struct {
	Access      string   `json:"access"`
	Refresh     string   `json:"refresh"`
	MFARequired bool     `json:"mfa_required"`
	MFAToken    string   `json:"mfa_token"`
	Methods     []string `json:"methods"`
}

// AuthService issues credentials and writes them to the store.
//
// All requests are anonymous so a rejected password is never mistaken for an expired session.
type AuthService struct {
	sender    Sender
	store     CredentialStore
	loginPath string
	logger    *log.Logger
}

// NewAuthService creates an auth client. An empty loginPath uses [DefaultLoginPath].
func NewAuthService(sender Sender, store CredentialStore, loginPath string, logger *log.Logger) *AuthService {
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	if logger == nil {
		logger = shared.NopLogger()
	}
	return &AuthService{sender: sender, store: store, loginPath: loginPath, logger: logger}
}

func (s *AuthService) anon(path string, body any) *Request {
	return &Request{Method: http.MethodPost, Path: path, Body: body, Anonymous: true}
}

// Login exchanges a username and password for a credential.
//
// When the account requires a second factor the returned challenge is non-nil, nothing is
// stored, and the caller completes the login with [AuthService.VerifyMFA].
func (s *AuthService) Login(ctx context.Context, username, password string) (*MFAChallenge, error) {
	if err := requireText("username", strings.TrimSpace(username)); err != nil {
		return nil, err
	}
	if err := requireText("password", password); err != nil {
		return nil, err
	}

	out, err := do[loginResponse](ctx, s.sender, s.anon(s.loginPath, map[string]string{
		"username": strings.TrimSpace(username),
		"password": password,
	}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}

	if out.MFARequired && out.MFAToken == "" {
		return nil, fmt.Errorf("%w: no challenge token in login response", shared.ErrMFARequired)
	}
	if out.MFARequired || (out.Access == "" && out.MFAToken != "") {
		s.logger.Info("second factor required", "username", username)
		return &MFAChallenge{Token: out.MFAToken, Methods: out.Methods}, nil
	}

	return nil, s.save(models.Credential{AccessToken: out.Access, RefreshToken: out.Refresh})
}

// VerifyMFA completes a login started by [AuthService.Login].
func (s *AuthService) VerifyMFA(ctx context.Context, challenge *MFAChallenge, code string) error {
	if challenge == nil || challenge.Token == "" {
		return fmt.Errorf("%w: mfa challenge", shared.ErrMissingArgument)
	}
	if err := requireText("code", strings.TrimSpace(code)); err != nil {
		return err
	}

	out, err := do[loginResponse](ctx, s.sender, s.anon(mfaVerifyPath, map[string]string{
		"mfa_token": challenge.Token,
		"code":      strings.TrimSpace(code),
	}))
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}

	return s.save(models.Credential{AccessToken: out.Access, RefreshToken: out.Refresh})
}

func (s *AuthService) save(cred models.Credential) error {
	if !cred.Authenticated() {
		return fmt.Errorf("%w: response carried no access token", shared.ErrAuthFailed)
	}
	if err := s.store.Set(cred); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	s.logger.Info("logged in")
	return nil
}

// Logout clears the stored credential.
func (s *AuthService) Logout() error {
	return s.store.Clear()
}

// Register creates an account. Most backends require email verification before login.
func (s *AuthService) Register(ctx context.Context, r Registration) error {
	if err := requireText("username", r.Username); err != nil {
		return err
	}
	if err := requireText("email", r.Email); err != nil {
		return err
	}
	if err := requireText("password", r.Password); err != nil {
		return err
	}
	return send(ctx, s.sender, s.anon(registerPath, r))
}

// VerifyEmail confirms an address with the token sent by email.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	if err := requireText("token", token); err != nil {
		return err
	}
	return send(ctx, s.sender, s.anon(verifyEmailPath, map[string]string{"token": token}))
}

// RequestPasswordReset asks the backend to email a reset token.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	if err := requireText("email", email); err != nil {
		return err
	}
	return send(ctx, s.sender, s.anon(passwordResetPath, map[string]string{"email": email}))
}

// ConfirmPasswordReset sets a new password using a reset token.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	if err := requireText("token", token); err != nil {
		return err
	}
	if err := requireText("password", password); err != nil {
		return err
	}
	return send(ctx, s.sender, s.anon(passwordResetConfirmPath, map[string]string{"token": token, "password": password}))
}
