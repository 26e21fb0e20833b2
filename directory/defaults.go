package directory

// Built-in attribute templates, used when the configuration does not supply
// its own. Triple braces keep mustache from HTML-escaping attribute values.

// DefaultUserTemplate renders an Okta user as an inetOrgPerson.
func DefaultUserTemplate() map[string]any {
	return map[string]any{
		"objectClass":    []any{"top", "person", "organizationalPerson", "inetOrgPerson"},
		"cn":             "{{{profile.firstName}}} {{{profile.lastName}}}",
		"displayName":    "{{{profile.firstName}}} {{{profile.lastName}}}",
		"givenName":      "{{{profile.firstName}}}",
		"sn":             "{{{profile.lastName}}}",
		"mail":           "{{{profile.email}}}",
		"employeeNumber": "{{{profile.employeeNumber}}}",
		"uid":            "{{{shortName}}}",
		"memberOf": map[string]any{
			"__list": "groups",
			"item":   "{{{item.dn}}}",
		},
	}
}

// DefaultGroupTemplate renders an Okta group as a groupOfNames.
func DefaultGroupTemplate() map[string]any {
	return map[string]any{
		"objectClass": "groupOfNames",
		"cn":          "{{{profile.name}}}",
		"description": "{{{profile.description}}}",
		"member": map[string]any{
			"__list": "members",
			"item":   "{{{item.dn}}}",
		},
	}
}
