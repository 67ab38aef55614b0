package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
	"golang.org/x/oauth2"
)

// BrowserLogin runs a login that completes in the user's browser.
//
// It listens on Addr, sends the user to the login page with a redirect back to
// /callback and waits for the credential to arrive.
type BrowserLogin struct {
	LoginURL string         // web login page, used when OAuth is nil
	OAuth    *oauth2.Config // authorization code flow; RedirectURL is filled in
	Addr     string         // listen address, "127.0.0.1:0" picks a free port
	Timeout  time.Duration
	Open     func(authURL string) error
	Logger   *log.Logger
}

// AuthURL builds the URL the user has to visit for the given redirect and state.
func (b BrowserLogin) AuthURL(redirect, state string) (string, *oauth2.Config, error) {
	if b.OAuth != nil {
		cfg := *b.OAuth
		cfg.RedirectURL = redirect
		return cfg.AuthCodeURL(state), &cfg, nil
	}

	u, err := url.Parse(b.LoginURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", nil, fmt.Errorf("%w: login url %q is not absolute", shared.ErrInvalidConfig, b.LoginURL)
	}
	q := u.Query()
	q.Set("redirect_uri", redirect)
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil, nil
}

// Run blocks until the callback delivers a credential, the timeout passes or ctx ends.
func (b BrowserLogin) Run(ctx context.Context) (models.Credential, error) {
	logger := b.Logger
	if logger == nil {
		logger = shared.NopLogger()
	}
	addr := b.Addr
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	state, err := shared.GenerateState()
	if err != nil {
		return models.Credential{}, err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return models.Credential{}, fmt.Errorf("failed to listen for login callback: %w", err)
	}

	redirect := "http://" + ln.Addr().String() + "/callback"
	authURL, cfg, err := b.AuthURL(redirect, state)
	if err != nil {
		ln.Close()
		return models.Credential{}, err
	}

	handler := NewCallbackHandler(cfg, state)
	router := NewBasicRouter()
	router.Use(RequestLogger(logger))
	router.Handler(handler)

	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		logger.Debug("login callback server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error shutting down callback server", "error", err)
		}
	}()

	if b.Open != nil {
		if err := b.Open(authURL); err != nil {
			logger.Warn("could not open login page", "error", err)
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-handler.Result():
		if err := result.Error(); err != nil {
			return models.Credential{}, err
		}
		return result.Credential, nil
	case err := <-serveErr:
		return models.Credential{}, fmt.Errorf("callback server: %w", err)
	case <-timer.C:
		return models.Credential{}, fmt.Errorf("%w: no login within %v", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return models.Credential{}, fmt.Errorf("%w: %w", shared.ErrCancelled, ctx.Err())
	}
}
