// Package server provides HTTP routing, middleware, and OAuth handling for CLI and web interfaces.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # API Handler
//
// [APIHandler] serves the flyer-to-playlist endpoints: flyer upload,
// image analysis with OCR fallback, raw OCR, text-based artist extraction,
// and playlist creation. Each endpoint returns JSON; pipeline errors map
// to HTTP statuses (rate limited → 429, extraction failed → 422, playlist
// creation failed → 502).
//
// # OAuth Callback Handler
//
// OAuthHandler implements the OAuth2 authorization code callback flow.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// and sends the result through a channel.
//
// It only processes one callback to prevent replay attacks.
//
// When the user runs the auth command, a temporary HTTP server starts on localhost, handles the callback,
// and shuts down after receiving the OAuth token.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
