// Package server runs the short-lived local HTTP server that completes a browser login.
//
// # Router
//
// [BasicRouter] implements [Router] on [http.ServeMux] with method filtering and a
// [Middleware] stack. [RequestLogger] logs each request without its query string.
//
// # Login Callback
//
// [CallbackHandler] serves /callback. It checks the state parameter, then either exchanges
// an OAuth2 authorization code or reads the access and refresh tokens the web app passes
// along, and delivers exactly one [CallbackResult].
//
// [BrowserLogin] ties it together: it listens on a local address, builds the login URL
// with the redirect and state, hands it to the caller to open and waits for the result,
// a timeout or cancellation. The server is shut down before Run returns.
package server
