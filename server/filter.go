package server

import (
	"fmt"

	"github.com/nmcclain/ldap"

	"f0oster/oktaldap/directory"
)

// compilePredicate compiles a wire filter once and returns a predicate that
// applies it to one entry's attribute map. Evaluation failures (e.g. a
// comparison the matcher cannot perform) surface as errors, which the query
// engine treats as "no match" for that entry.
func compilePredicate(filter string) (directory.FilterPredicate, error) {
	compiled, err := ldap.CompileFilter(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to compile filter %q: %w", filter, err)
	}
	return func(attrs map[string][]string) (bool, error) {
		keep, code := ldap.ServerApplyFilter(compiled, filterEntry(attrs))
		if code != ldap.LDAPResultSuccess {
			return false, fmt.Errorf("filter evaluation failed with result code %d", code)
		}
		return keep, nil
	}, nil
}

// filterEntry wraps an attribute map in the entry shape the filter matcher
// expects. The DN is irrelevant to filter evaluation.
func filterEntry(attrs map[string][]string) *ldap.Entry {
	entryAttrs := make([]*ldap.EntryAttribute, 0, len(attrs))
	for name, values := range attrs {
		entryAttrs = append(entryAttrs, &ldap.EntryAttribute{Name: name, Values: values})
	}
	return &ldap.Entry{Attributes: entryAttrs}
}
