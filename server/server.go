// Package server is the LDAP protocol front end. It adapts the wire-level
// bind/search hooks of nmcclain/ldap onto the query engine: parsing DNs,
// compiling filters into predicates, and mapping the engine's error kinds
// to LDAP result codes. All directory semantics live in package directory;
// this package only translates.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/nmcclain/ldap"

	"f0oster/oktaldap/directory"
)

// SnapshotSource yields the currently published snapshot.
type SnapshotSource interface {
	Current() *directory.Snapshot
}

// Handler implements the nmcclain/ldap Binder and Searcher interfaces.
type Handler struct {
	source  SnapshotSource
	checker directory.CredentialChecker
	admin   directory.AdminIdentity
	cache   *bindCache
	logger  *slog.Logger
}

// NewHandler wires the protocol adapter. cacheTTL > 0 enables the
// successful-bind cache; zero disables it.
func NewHandler(
	source SnapshotSource,
	checker directory.CredentialChecker,
	admin directory.AdminIdentity,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		source:  source,
		checker: checker,
		admin:   admin,
		cache:   newBindCache(cacheTTL),
		logger:  logger.With(slog.String("component", "ldap")),
	}
}

// Serve runs the LDAP listener until it fails. Scope and filter handling
// stay in our hands (EnforceLDAP off): the snapshot is the source of truth
// for hierarchy semantics.
func (h *Handler) Serve(addr string) error {
	s := ldap.NewServer()
	s.BindFunc("", h)
	s.SearchFunc("", h)
	return s.ListenAndServe(addr)
}

// Bind authenticates a simple bind. Binds at or below the admin DN resolve
// against the configured administrator; everything else is a directory user
// bind checked upstream.
func (h *Handler) Bind(bindDN, bindSimplePw string, conn net.Conn) (ldap.LDAPResultCode, error) {
	dn, err := directory.ParseDN(bindDN)
	if err != nil {
		h.logger.Info("bind with unparseable DN", slog.String("dn", bindDN))
		return ldap.LDAPResultInvalidDNSyntax, nil
	}

	if dn.Equal(h.admin.DN) || h.admin.DN.AncestorOf(dn) {
		return h.bindAdmin(dn, bindSimplePw), nil
	}
	return h.bindUser(dn, bindSimplePw), nil
}

func (h *Handler) bindAdmin(dn directory.DN, password string) ldap.LDAPResultCode {
	err := directory.BindAdmin(h.admin, dn, password)
	switch {
	case err == nil:
		bindsTotal.WithLabelValues("admin", "ok").Inc()
		return ldap.LDAPResultSuccess
	case errors.Is(err, directory.ErrNoSuchObject):
		h.logger.Info("bind for a child of the admin user", slog.String("dn", dn.String()))
		bindsTotal.WithLabelValues("admin", "no_such_object").Inc()
		return ldap.LDAPResultNoSuchObject
	default:
		h.logger.Info("invalid credentials for admin user")
		bindsTotal.WithLabelValues("admin", "invalid_credentials").Inc()
		return ldap.LDAPResultInvalidCredentials
	}
}

func (h *Handler) bindUser(dn directory.DN, password string) ldap.LDAPResultCode {
	if h.cache.get(dn, password) {
		bindsTotal.WithLabelValues("user", "cached").Inc()
		return ldap.LDAPResultSuccess
	}

	snap := h.source.Current()
	err := directory.BindUser(context.Background(), snap, dn, password, h.checker)
	switch {
	case err == nil:
		h.cache.put(dn, password)
		bindsTotal.WithLabelValues("user", "ok").Inc()
		return ldap.LDAPResultSuccess
	case errors.Is(err, directory.ErrNoSuchObject):
		bindsTotal.WithLabelValues("user", "no_such_object").Inc()
		return ldap.LDAPResultNoSuchObject
	default:
		bindsTotal.WithLabelValues("user", "invalid_credentials").Inc()
		return ldap.LDAPResultInvalidCredentials
	}
}

// Search authorizes the bound identity, then evaluates the request against
// the snapshot taken at the start of the call.
func (h *Handler) Search(boundDN string, req ldap.SearchRequest, conn net.Conn) (ldap.ServerSearchResult, error) {
	bound, err := directory.ParseDN(boundDN)
	if err != nil {
		return searchFailed(ldap.LDAPResultInsufficientAccessRights), nil
	}
	if err := directory.Authorize(h.admin, bound); err != nil {
		searchesTotal.WithLabelValues("denied").Inc()
		return searchFailed(ldap.LDAPResultInsufficientAccessRights), nil
	}

	base, err := directory.ParseDN(req.BaseDN)
	if err != nil {
		return searchFailed(ldap.LDAPResultInvalidDNSyntax), nil
	}

	scope, ok := mapScope(req.Scope)
	if !ok {
		return searchFailed(ldap.LDAPResultProtocolError), nil
	}

	predicate, err := compilePredicate(req.Filter)
	if err != nil {
		return searchFailed(ldap.LDAPResultOperationsError), nil
	}

	snap := h.source.Current()
	results, err := directory.Search(snap, base, scope, predicate)
	if err != nil {
		if errors.Is(err, directory.ErrNoSuchObject) {
			searchesTotal.WithLabelValues("no_such_object").Inc()
			return searchFailed(ldap.LDAPResultNoSuchObject), nil
		}
		searchesTotal.WithLabelValues("error").Inc()
		return searchFailed(ldap.LDAPResultOperationsError), nil
	}

	entries := make([]*ldap.Entry, 0, len(results))
	for _, r := range results {
		entries = append(entries, wireEntry(r))
	}

	searchesTotal.WithLabelValues("ok").Inc()
	return ldap.ServerSearchResult{
		Entries:    entries,
		Referrals:  []string{},
		Controls:   []ldap.Control{},
		ResultCode: ldap.LDAPResultSuccess,
	}, nil
}

func searchFailed(code ldap.LDAPResultCode) ldap.ServerSearchResult {
	return ldap.ServerSearchResult{ResultCode: code}
}

func mapScope(scope int) (directory.Scope, bool) {
	switch scope {
	case ldap.ScopeBaseObject:
		return directory.ScopeBase, true
	case ldap.ScopeSingleLevel:
		return directory.ScopeOne, true
	case ldap.ScopeWholeSubtree:
		return directory.ScopeSub, true
	default:
		return 0, false
	}
}

func wireEntry(r directory.SearchResult) *ldap.Entry {
	attrs := make([]*ldap.EntryAttribute, 0, len(r.Attributes))
	for name, values := range r.Attributes {
		attrs = append(attrs, &ldap.EntryAttribute{Name: name, Values: values})
	}
	return &ldap.Entry{DN: r.DN, Attributes: attrs}
}
