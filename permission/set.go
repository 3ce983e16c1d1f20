package permission

// Set is a bit-vector over the known scope enumeration. The zero value
// carries no permissions.
type Set uint64

const (
	// Me grants read access to the caller's own record.
	Me Set = 1 << iota
	// ViewUsers grants read access to all user records.
	ViewUsers
	// DeleteUsers grants deletion of other users.
	DeleteUsers
	// EditUsers grants edits to other users.
	EditUsers
	// Disable2FA grants administrative deactivation of another user's MFA.
	Disable2FA
)

// Owner is the pseudo-scope reserved for account owners. It is never stored
// in a Set; callers derive it from the credential record's owner flag.
const Owner = "OWNER"

// scopeNames lists every known scope in declaration order. The order is part
// of the external scope-string contract.
var scopeNames = []struct {
	bit  Set
	name string
}{
	{Me, "ME"},
	{ViewUsers, "VIEW_USERS"},
	{DeleteUsers, "DELETE_USERS"},
	{EditUsers, "EDIT_USERS"},
	{Disable2FA, "DISABLE_2FA"},
}

// All returns the union of every known scope.
func All() Set {
	var all Set
	for _, s := range scopeNames {
		all |= s.bit
	}
	return all
}

// Has reports whether every bit of other is present in s. Unknown bits in s
// are tolerated but never satisfy a check on their own.
func (s Set) Has(other Set) bool {
	return s&other == other && other != 0
}

// Union returns the bitwise union of s and other.
func (s Set) Union(other Set) Set {
	return s | other
}

// Scopes returns the names of the known scopes present in s, in declaration
// order. Unknown bits are ignored.
func (s Set) Scopes() []string {
	out := make([]string, 0, len(scopeNames))
	for _, entry := range scopeNames {
		if s&entry.bit != 0 {
			out = append(out, entry.name)
		}
	}
	return out
}

// Parse resolves a scope name to its bit. The Owner pseudo-scope and unknown
// names report false.
func Parse(name string) (Set, bool) {
	for _, entry := range scopeNames {
		if entry.name == name {
			return entry.bit, true
		}
	}
	return 0, false
}

// FromScopes builds a Set from scope names, silently dropping unknown names
// and the Owner pseudo-scope.
func FromScopes(names []string) Set {
	var s Set
	for _, name := range names {
		if bit, ok := Parse(name); ok {
			s |= bit
		}
	}
	return s
}
