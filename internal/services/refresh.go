package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// CredentialStore is the read/write side of the credential store.
type CredentialStore interface {
	CredentialSource
	Set(models.Credential) error
	Clear() error
}

// Refresher exchanges a refresh token for a new credential.
//
// The returned RefreshToken may be empty when the server does not rotate it.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (models.Credential, error)
}

// callState is the position of one logical call in the refresh state machine.
type callState int

const (
	stateDispatch callState = iota
	stateRefreshing
	stateDone
	stateLoggedOut
)

func (s callState) String() string {
	switch s {
	case stateDispatch:
		return "dispatch"
	case stateRefreshing:
		return "refreshing"
	case stateDone:
		return "done"
	case stateLoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}

// CoordinatorOpts configures a [Coordinator].
type CoordinatorOpts struct {
	Pipeline  Sender
	Store     CredentialStore
	Refresher Refresher
	// OnLogout runs once per irrecoverable refresh failure, after the store is cleared.
	// The CLI uses it to point the user at the login entry point.
	OnLogout func(error)
	Logger   *log.Logger
}

// Coordinator wraps a [Pipeline] and recovers from expired access tokens.
//
// A 401 triggers at most one refresh per logical call, and concurrent 401s share a single
// in-flight refresh. A failed refresh clears the store and fails the call with
// [shared.ErrSessionExpired].
type Coordinator struct {
	pipeline  Sender
	store     CredentialStore
	refresher Refresher
	onLogout  func(error)
	flight    singleflight.Group
	logger    *log.Logger
}

// NewCoordinator creates a coordinator from opts.
func NewCoordinator(opts CoordinatorOpts) *Coordinator {
	c := &Coordinator{
		pipeline:  opts.Pipeline,
		store:     opts.Store,
		refresher: opts.Refresher,
		onLogout:  opts.OnLogout,
		logger:    opts.Logger,
	}
	if c.logger == nil {
		c.logger = shared.NopLogger()
	}
	return c
}

// Send dispatches req, refreshing the credential and replaying req once on a 401.
func (c *Coordinator) Send(ctx context.Context, req *Request) (*Response, error) {
	var (
		state   = stateDispatch
		retried bool
		used    string
		resp    *Response
		err     error
	)

	for {
		switch state {
		case stateDispatch:
			cred, _ := c.store.Get()
			used = cred.AccessToken

			resp, err = c.pipeline.Send(ctx, req)
			switch {
			case err == nil, IsCancelled(err), ctx.Err() != nil:
				state = stateDone
			case IsUnauthorized(err) && !retried && !req.Anonymous:
				state = stateRefreshing
			default:
				state = stateDone
			}

		case stateRefreshing:
			retried = true
			c.logger.Debug("access token rejected", "path", req.Path)

			if rerr := c.refresh(ctx, used); rerr != nil {
				err = rerr
				if IsCancelled(rerr) {
					state = stateDone
				} else {
					state = stateLoggedOut
				}
				continue
			}
			state = stateDispatch

		case stateDone:
			if err != nil {
				if ctx.Err() != nil && !IsCancelled(err) {
					return nil, cancelled(ctx.Err())
				}
				return nil, err
			}
			return resp, nil

		case stateLoggedOut:
			return nil, err
		}
	}
}

// refresh obtains a credential newer than failedToken, joining any refresh already in flight.
func (c *Coordinator) refresh(ctx context.Context, failedToken string) error {
	if cur, ok := c.store.Get(); ok && cur.AccessToken != failedToken {
		return nil
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan("refresh", func() (any, error) {
		return nil, c.doRefresh(flightCtx, failedToken)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return cancelled(ctx.Err())
	}
}

func (c *Coordinator) doRefresh(ctx context.Context, failedToken string) error {
	cur, _ := c.store.Get()
	if cur.AccessToken != failedToken {
		if cur.Authenticated() {
			return nil
		}
		return fmt.Errorf("%w: session was cleared", shared.ErrSessionExpired)
	}

	if cur.RefreshToken == "" {
		return c.logout(shared.ErrNoRefreshToken)
	}
	if c.refresher == nil {
		return c.logout(fmt.Errorf("%w: no refresher configured", shared.ErrRefreshFailed))
	}

	next, err := c.refresher.Refresh(ctx, cur.RefreshToken)
	if err != nil {
		return c.logout(fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err))
	}
	if !next.Authenticated() {
		return c.logout(fmt.Errorf("%w: response carried no access token", shared.ErrRefreshFailed))
	}
	if next.RefreshToken == "" {
		next.RefreshToken = cur.RefreshToken
	}

	if err := c.store.Set(next); err != nil {
		return c.logout(fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err))
	}

	c.logger.Info("session refreshed")
	return nil
}

// logout clears the session and notifies the consumer once.
func (c *Coordinator) logout(cause error) error {
	c.logger.Warn("session expired", "error", cause)

	if err := c.store.Clear(); err != nil {
		c.logger.Error("failed to clear session", "error", err)
	}
	if c.onLogout != nil {
		c.onLogout(cause)
	}

	return fmt.Errorf("%w: %w", shared.ErrSessionExpired, cause)
}

// Token returns the current credential as an [oauth2.Token], satisfying [oauth2.TokenSource].
func (c *Coordinator) Token() (*oauth2.Token, error) {
	cred, ok := c.store.Get()
	if !ok {
		return nil, shared.ErrNotAuthenticated
	}
	return cred.Token(), nil
}

// BackendRefresher posts the refresh token to the backend's refresh endpoint.
type BackendRefresher struct {
	sender Sender
	path   string
}

// NewBackendRefresher creates a refresher. sender should be the raw [Pipeline] so a
// rejected refresh is never itself refreshed.
func NewBackendRefresher(sender Sender, path string) *BackendRefresher {
	return &BackendRefresher{sender: sender, path: path}
}

func (r *BackendRefresher) Refresh(ctx context.Context, refreshToken string) (models.Credential, error) {
	resp, err := r.sender.Send(ctx, &Request{
		Method:    http.MethodPost,
		Path:      r.path,
		Body:      map[string]string{"refresh": refreshToken},
		Anonymous: true,
	})
	if err != nil {
		return models.Credential{}, err
	}

	var cred models.Credential
	if err := DecodeJSON(resp, &cred); err != nil {
		return models.Credential{}, err
	}
	return cred, nil
}

// OAuth2Refresher uses the standard refresh-token grant against an OAuth2 token endpoint.
type OAuth2Refresher struct {
	config *oauth2.Config
	client *http.Client
}

// NewOAuth2Refresher creates a refresher for tokenURL. client may be nil.
func NewOAuth2Refresher(tokenURL, clientID, clientSecret string, client *http.Client) *OAuth2Refresher {
	return &OAuth2Refresher{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		},
		client: client,
	}
}

func (r *OAuth2Refresher) Refresh(ctx context.Context, refreshToken string) (models.Credential, error) {
	if r.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.client)
	}

	tok, err := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return models.Credential{}, newHTTPError(retrieveErr.Response.StatusCode, retrieveErr.Body)
		}
		return models.Credential{}, newNetworkError(err)
	}

	return models.CredentialFromToken(tok, refreshToken), nil
}
