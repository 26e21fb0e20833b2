package directory

import (
	"context"
	"fmt"

	"f0oster/oktaldap/okta"
)

// Scope selects the breadth of a search.
type Scope int

const (
	// ScopeBase evaluates only the base entry.
	ScopeBase Scope = iota
	// ScopeOne covers the base entry and its immediate children.
	ScopeOne
	// ScopeSub covers the base entry and all of its descendants.
	ScopeSub
)

// FilterPredicate evaluates a search filter against one entry's attributes.
// An evaluation error means "no match" for that entry only; it never aborts
// the search.
type FilterPredicate func(attrs map[string][]string) (bool, error)

// SearchResult is one matched entry.
type SearchResult struct {
	DN         string
	Attributes map[string][]string
}

// CredentialChecker verifies a login/password pair against the upstream
// identity provider. Implemented by *okta.Client.
type CredentialChecker interface {
	CheckCredentials(ctx context.Context, login, password string) error
}

// AdminIdentity is the configured administrator: the only identity allowed
// to search.
type AdminIdentity struct {
	DN       DN
	Password string
}

// BindAdmin authenticates a bind against the configured administrator.
// A strict descendant of the admin DN fails with ErrNoSuchObject; any other
// mismatch of DN or secret fails with ErrInvalidCredentials.
func BindAdmin(admin AdminIdentity, dn DN, password string) error {
	if !dn.Equal(admin.DN) {
		if admin.DN.AncestorOf(dn) {
			return fmt.Errorf("%w: %s", ErrNoSuchObject, dn.String())
		}
		return ErrInvalidCredentials
	}
	if password != admin.Password {
		return ErrInvalidCredentials
	}
	return nil
}

// BindUser authenticates a bind against a directory user entry, delegating
// the password check upstream with the user's login identity. A DN that is
// absent from the snapshot, or present but not a user, fails with
// ErrNoSuchObject.
func BindUser(ctx context.Context, snap *Snapshot, dn DN, password string, checker CredentialChecker) error {
	entry, ok := snap.Lookup(dn)
	if !ok || entry.Kind != KindUser {
		return fmt.Errorf("%w: %s", ErrNoSuchObject, dn.String())
	}
	user, ok := entry.Source.(*okta.User)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchObject, dn.String())
	}
	if err := checker.CheckCredentials(ctx, user.Login(), password); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return nil
}

// Authorize gates search access: only the administrator identity may
// search, including anonymous (empty) binds.
func Authorize(admin AdminIdentity, bound DN) error {
	if !bound.Equal(admin.DN) {
		return ErrInsufficientAccess
	}
	return nil
}

// Search evaluates a scoped search against a single snapshot. Callers pass
// the snapshot they obtained at the start of the request, so the view stays
// stable even if a rebuild publishes a newer one mid-query.
func Search(snap *Snapshot, base DN, scope Scope, match FilterPredicate) ([]SearchResult, error) {
	baseEntry, ok := snap.Lookup(base)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchObject, base.String())
	}

	if scope == ScopeBase {
		if matches(match, baseEntry) {
			return []SearchResult{{DN: baseEntry.DN.String(), Attributes: baseEntry.Attributes}}, nil
		}
		return nil, nil
	}

	var inScope func(dn DN) bool
	switch scope {
	case ScopeOne:
		inScope = func(dn DN) bool {
			return dn.Equal(base) || dn.Parent().Equal(base)
		}
	case ScopeSub:
		inScope = func(dn DN) bool {
			return dn.Equal(base) || base.AncestorOf(dn)
		}
	default:
		return nil, fmt.Errorf("unsupported search scope %d", scope)
	}

	var results []SearchResult
	for _, entry := range snap.Entries() {
		if !inScope(entry.DN) {
			continue
		}
		if matches(match, entry) {
			results = append(results, SearchResult{DN: entry.DN.String(), Attributes: entry.Attributes})
		}
	}
	return results, nil
}

// matches applies the filter, treating evaluation errors as non-matches.
func matches(match FilterPredicate, entry *Entry) bool {
	ok, err := match(entry.Attributes)
	return err == nil && ok
}
