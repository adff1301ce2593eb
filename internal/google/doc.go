// Package google provides OAuth2 authorization and token management for the
// Gmail account the server sends as.
//
// Tokens are stored per account under the user cache directory. The
// TokenProvider loads them lazily, refreshes them through the OAuth2 library,
// and falls back to an interactive loopback authorization when no usable
// token exists. A TokenWatcher drops the cached token when another process
// (for example the auth command) rewrites the token file.
package google
