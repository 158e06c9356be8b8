// Package portal is the HTTP client for the document portal.
//
// The portal authenticates a user by verifying a signed nonce and then
// identifies them with a "uid" cookie, which Client keeps in a cookie jar.
// Failures are returned as domain.ErrRemote carrying the HTTP status and
// the server's "detail" text.
package portal
