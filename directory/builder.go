// Package directory turns a linked Okta directory into an immutable
// in-memory snapshot keyed by distinguished name, and answers bind and
// search requests against such snapshots with LDAP scope semantics.
package directory

import (
	"fmt"
	"log/slog"

	"github.com/cbroglie/mustache"

	"f0oster/oktaldap/directory/template"
	"f0oster/oktaldap/okta"
)

// Templates collects the DN and attribute templates a Builder renders with.
// DN templates are mustache strings; attribute templates follow the
// directory/template node language.
type Templates struct {
	UserDN          string
	GroupDN         string
	UserAttributes  map[string]any
	GroupAttributes map[string]any
}

// Builder renders linked upstream directories into snapshots.
type Builder struct {
	templates Templates
	logger    *slog.Logger
}

func NewBuilder(templates Templates, logger *slog.Logger) *Builder {
	if templates.UserAttributes == nil {
		templates.UserAttributes = DefaultUserTemplate()
	}
	if templates.GroupAttributes == nil {
		templates.GroupAttributes = DefaultGroupTemplate()
	}
	return &Builder{
		templates: templates,
		logger:    logger.With(slog.String("component", "builder")),
	}
}

// Build produces a snapshot from a linked directory. Group DNs are rendered
// first so that user memberOf attributes can reference them (and vice versa
// for group member lists). Ancestors of both configured base DNs are seeded
// as containers, then group entries, then user entries; a later entry at an
// already-used DN overwrites the earlier one and is counted as a collision.
func (b *Builder) Build(dir *okta.Directory) (*Snapshot, error) {
	snap := newSnapshot()

	type renderedGroup struct {
		group *okta.Group
		dn    DN
	}
	type renderedUser struct {
		user *okta.User
		dn   DN
	}

	groups := make([]renderedGroup, 0, len(dir.Groups))
	for _, g := range dir.Groups {
		dn, err := b.renderDN(b.templates.GroupDN, g.Record())
		if err != nil {
			return nil, fmt.Errorf("failed to render DN for group %q: %w", g.Name(), err)
		}
		g.DN = dn.String()
		groups = append(groups, renderedGroup{group: g, dn: dn})
	}

	users := make([]renderedUser, 0, len(dir.Users))
	for _, u := range dir.Users {
		u.ShortName = okta.ShortNameFromEmail(u.Email())
		dn, err := b.renderDN(b.templates.UserDN, u.Record())
		if err != nil {
			return nil, fmt.Errorf("failed to render DN for user %q: %w", u.Login(), err)
		}
		u.DN = dn.String()
		users = append(users, renderedUser{user: u, dn: dn})
	}

	// The configured DN templates double as the base DNs: their parents are
	// the containers every search base must resolve against, even before any
	// users or groups exist.
	if err := b.addAncestors(snap, b.templates.UserDN); err != nil {
		return nil, err
	}
	if err := b.addAncestors(snap, b.templates.GroupDN); err != nil {
		return nil, err
	}

	for _, rg := range groups {
		attrs, err := b.renderAttributes(b.templates.GroupAttributes, rg.group.Record())
		if err != nil {
			return nil, fmt.Errorf("failed to render attributes for group %q: %w", rg.group.Name(), err)
		}
		b.insert(snap, &Entry{DN: rg.dn, Kind: KindGroup, Attributes: attrs, Source: rg.group})
		snap.Stats.Groups++
	}

	for _, ru := range users {
		attrs, err := b.renderAttributes(b.templates.UserAttributes, ru.user.Record())
		if err != nil {
			return nil, fmt.Errorf("failed to render attributes for user %q: %w", ru.user.Login(), err)
		}
		b.insert(snap, &Entry{DN: ru.dn, Kind: KindUser, Attributes: attrs, Source: ru.user})
		snap.Stats.Users++
	}

	b.logger.Info("snapshot built",
		slog.Int("entries", snap.Len()),
		slog.Int("users", snap.Stats.Users),
		slog.Int("groups", snap.Stats.Groups),
		slog.Int("containers", snap.Stats.Containers),
		slog.Int("collisions", snap.Stats.Collisions),
	)
	return snap, nil
}

func (b *Builder) insert(snap *Snapshot, e *Entry) {
	if snap.insert(e) {
		snap.Stats.Collisions++
		b.logger.Warn("DN collision, keeping last entry",
			slog.String("dn", e.DN.String()),
			slog.String("kind", e.Kind.String()),
		)
	}
}

// renderDN renders a mustache DN template and parses the result into
// canonical form.
func (b *Builder) renderDN(tpl string, record map[string]any) (DN, error) {
	rendered, err := mustache.Render(tpl, record)
	if err != nil {
		return DN{}, err
	}
	return ParseDN(rendered)
}

// renderAttributes renders an attribute template and flattens the result
// into LDAP attribute value lists.
func (b *Builder) renderAttributes(tpl map[string]any, record map[string]any) (map[string][]string, error) {
	rendered, err := template.Render(tpl, record)
	if err != nil {
		return nil, err
	}
	object, ok := rendered.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("attribute template did not render to an object: %T", rendered)
	}

	attrs := make(map[string][]string, len(object))
	for name, value := range object {
		attrs[name] = flattenValues(value)
	}
	return attrs, nil
}

// flattenValues turns a rendered template value into the flat value list an
// LDAP attribute carries.
func flattenValues(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, flattenValues(item)...)
		}
		return out
	default:
		return []string{fmt.Sprint(t)}
	}
}

// addAncestors seeds container entries for every strict ancestor of the
// DN template, walking parent-by-parent until the root. The template's own
// leaf (the per-entry RDN) is not included.
func (b *Builder) addAncestors(snap *Snapshot, dnTemplate string) error {
	base, err := ParseDN(dnTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse base DN template %q: %w", dnTemplate, err)
	}
	for dn := base.Parent(); !dn.IsRoot(); dn = dn.Parent() {
		if _, exists := snap.Lookup(dn); exists {
			continue
		}
		snap.insert(&Entry{DN: dn, Kind: KindContainer, Attributes: map[string][]string{}})
		snap.Stats.Containers++
	}
	return nil
}
