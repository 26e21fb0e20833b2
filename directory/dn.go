package directory

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// DN is a parsed distinguished name. The zero value is the root DN (no
// components). DNs are compared under LDAP case/format normalization, so
// "CN=Root" and "cn=root" identify the same entry.
type DN struct {
	parsed *ldap.DN
	canon  string
}

// ParseDN parses and canonicalizes a distinguished name string.
func ParseDN(s string) (DN, error) {
	parsed, err := ldap.ParseDN(s)
	if err != nil {
		return DN{}, fmt.Errorf("failed to parse DN %q: %w", s, err)
	}
	return fromParsed(parsed), nil
}

func fromParsed(parsed *ldap.DN) DN {
	if parsed == nil || len(parsed.RDNs) == 0 {
		return DN{}
	}
	return DN{parsed: parsed, canon: parsed.String()}
}

// String returns the canonical form of the DN ("" for the root DN).
func (d DN) String() string {
	return d.canon
}

// Key returns the case-folded form used to index snapshot entries.
func (d DN) Key() string {
	return strings.ToLower(d.canon)
}

// IsRoot reports whether the DN has no components.
func (d DN) IsRoot() bool {
	return d.parsed == nil || len(d.parsed.RDNs) == 0
}

// Parent strips the leading component. The parent of a single-component DN
// is the root DN, whose own parent is again the root DN.
func (d DN) Parent() DN {
	if d.IsRoot() {
		return DN{}
	}
	return fromParsed(&ldap.DN{RDNs: d.parsed.RDNs[1:]})
}

// Equal reports component-wise equality under LDAP normalization rules.
// Attribute types and values compare case-insensitively, matching the
// case-folded snapshot index.
func (d DN) Equal(o DN) bool {
	if d.IsRoot() || o.IsRoot() {
		return d.IsRoot() && o.IsRoot()
	}
	return d.parsed.EqualFold(o.parsed)
}

// AncestorOf reports whether d is a strict ancestor of o, under the same
// case-insensitive comparison as Equal.
func (d DN) AncestorOf(o DN) bool {
	if o.IsRoot() {
		return false
	}
	if d.IsRoot() {
		return true
	}
	return d.parsed.AncestorOfFold(o.parsed)
}
