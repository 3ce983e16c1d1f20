// Package permission implements the bitmask scope algebra used by the
// account service.
//
// The scope enumeration is closed and versioned: bit positions are part of
// the external contract (scope strings are listed in declaration order), so
// new scopes may only be appended, never reordered. Membership and union are
// single bitwise operations and allocate nothing.
//
// The super-admin OWNER capability is deliberately not a bit in the mask.
// It is derived from the credential record's owner flag so that it can never
// be granted or revoked through the bitmask path.
package permission
