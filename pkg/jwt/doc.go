// Package jwt implements HS256 token parsing and generation over stdlib
// crypto, plus extractors for pulling tokens out of HTTP requests.
//
// The service side of this application only ever verifies tokens; issuance
// belongs to the external identity provider. Generate exists so tests and
// local tooling can mint tokens with the shared secret.
package jwt
