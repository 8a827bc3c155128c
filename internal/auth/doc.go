// Package auth provides device credential resolution and viewer identity
// for BlueWatt Core.
//
// Two independent identities pass through this package:
//
//   - Devices authenticate with an opaque secret ("bw_" + 64 hex chars)
//     presented in the X-API-Key header. Only the Argon2id hash of a secret
//     is ever stored; resolution is a linear scan over active hashes.
//   - Viewers (dashboard users) authenticate with a JWT issued by the
//     account service. This core only validates signatures; it never
//     issues tokens.
//
// # Security
//
//   - Secrets that fail the structural check are rejected before any
//     hashing work is done.
//   - An inactive device and an unknown secret are indistinguishable to
//     the caller: both surface ErrUnauthenticated.
//   - Never log raw secrets. Log at most a short prefix.
package auth
