// Package providers holds the per-platform protocol adapters and the
// registry that binds a routing record's credential to one of them.
//
// Two adapter families cover the supported platforms: an HMAC family for
// platforms that sign `timestamp ++ body` with HMAC-SHA256, and an Ed25519
// family for platforms that run a URL-validation handshake before
// delivering signed events. Platform subpackages (github, gitlab, stripe,
// sentry, zoom) are thin bindings that configure one of the two families
// with their platform's header names and payload shape.
package providers
