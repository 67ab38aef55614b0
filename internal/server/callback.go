package server

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
	"golang.org/x/oauth2"
)

// CallbackResult is the outcome of a browser login.
type CallbackResult struct {
	Credential models.Credential
	err        error
}

func (c CallbackResult) Error() error {
	return c.err
}

// CallbackHandler receives the browser redirect that completes a login.
//
// With an OAuth2 config it expects an authorization code and exchanges it. Without one it
// expects the web app to hand the credential pair over as access and refresh parameters.
// Either way the state parameter must match and only the first request is processed.
type CallbackHandler struct {
	config  *oauth2.Config
	state   string
	results chan CallbackResult
	once    sync.Once
	mu      sync.Mutex
	hit     bool
}

func NewCallbackHandler(config *oauth2.Config, state string) *CallbackHandler {
	return &CallbackHandler{
		config:  config,
		state:   state,
		results: make(chan CallbackResult, 1),
	}
}

func (h *CallbackHandler) Routes() []string {
	return []string{"/callback"}
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.hit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.hit = true
	h.mu.Unlock()

	q := r.URL.Query()
	if q.Get("state") != h.state {
		h.Send(CallbackResult{err: fmt.Errorf("%w: state mismatch", shared.ErrAuthFailed)})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	if e := q.Get("error"); e != "" {
		h.Send(CallbackResult{err: fmt.Errorf("%w: %s %s", shared.ErrAuthFailed, e, q.Get("error_description"))})
		http.Error(w, "Login failed", http.StatusBadRequest)
		return
	}

	var cred models.Credential
	if h.config != nil {
		code := q.Get("code")
		if code == "" {
			h.Send(CallbackResult{err: fmt.Errorf("%w: no authorization code", shared.ErrAuthFailed)})
			http.Error(w, "Missing authorization code", http.StatusBadRequest)
			return
		}
		token, err := h.config.Exchange(r.Context(), code)
		if err != nil {
			h.Send(CallbackResult{err: fmt.Errorf("%w: token exchange: %w", shared.ErrAuthFailed, err)})
			http.Error(w, "Token exchange failed", http.StatusBadGateway)
			return
		}
		cred = models.CredentialFromToken(token, "")
	} else {
		cred = models.Credential{AccessToken: q.Get("access"), RefreshToken: q.Get("refresh")}
	}

	if !cred.Authenticated() {
		h.Send(CallbackResult{err: fmt.Errorf("%w: no access token received", shared.ErrAuthFailed)})
		http.Error(w, "Missing access token", http.StatusBadRequest)
		return
	}

	h.Send(CallbackResult{Credential: cred})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}

// Send delivers the result. Only the first call has any effect.
func (h *CallbackHandler) Send(result CallbackResult) {
	h.once.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Result receives exactly one result and is then closed.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.results
}

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>Signed in</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #141414; color: #eee; }
        .container { text-align: center; padding: 2rem; border-radius: 8px; background: #1f1f1f; }
        h1 { color: #e50914; margin: 0 0 1rem 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Signed in to reelx</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`
