// Package password implements salted password hashing and constant-time
// verification with Argon2id.
//
// Hashes and salts are returned as separate byte slices because the credential
// record stores them in separate columns. Verification recomputes the
// derivation and compares with crypto/subtle; the [Hasher.VerifyDummy] path
// burns a full derivation against a synthetic record so that callers can keep
// "user not found" and "wrong password" indistinguishable by timing.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (minimum
// length, reuse) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other authcore package.
//   - Log plaintext passwords.
package password
