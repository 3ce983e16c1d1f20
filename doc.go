// Package authcore is the authentication and authorization core of the
// Synccord account service. It issues and validates HMAC-signed bearer
// session tokens, enforces a bitflag scope model with a live-permission
// re-check on every validation, manages TOTP multi-factor enrollment with
// single-use recovery codes, and gates sensitive account mutations behind
// step-up re-authentication.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build]. Mutations of a single account are serialized internally;
// token validation is read-mostly and never blocks on per-user locks.
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the [UserStore] contract, and value types (Principal, IssuedToken,
// AuditEvent). Persistence lives behind UserStore with in-memory and
// postgres implementations under store/; revocation lives behind the
// revocation.Cache interface with in-memory and redis implementations. Routing,
// request validation, pagination, and rate limiting are external
// collaborators and never enter this package.
package authcore
