// Package template renders the declarative attribute templates that map
// upstream identity records onto directory attributes. A template node is
// one of:
//
//   - a mustache string, interpolated against the record (missing paths
//     render as the empty string so sparse upstream profiles never fail)
//   - a map of attribute name to sub-template
//   - a list of sub-templates
//   - a list-expansion node {"__list": <record field>, "item": <template>},
//     which renders the item template once per element of the named
//     collection, each against a fresh {"item": element} record
//
// Templates usually arrive from YAML configuration, so any other node shape
// is a configuration defect and fails with *InvalidTemplateError.
package template

import (
	"fmt"
	"reflect"

	"github.com/cbroglie/mustache"
)

// Field names of a list-expansion node.
const (
	listKey = "__list"
	itemKey = "item"
)

// InvalidTemplateError reports a template node that is not part of the
// template language, or a string node that fails to compile.
type InvalidTemplateError struct {
	Node any
	Err  error
}

func (e *InvalidTemplateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid template node %T %q: %v", e.Node, fmt.Sprint(e.Node), e.Err)
	}
	return fmt.Sprintf("unexpected template node type %T: %q", e.Node, fmt.Sprint(e.Node))
}

func (e *InvalidTemplateError) Unwrap() error {
	return e.Err
}

// Render evaluates a template node against a record. Pure: neither input is
// modified, and the same inputs always produce the same output.
func Render(node any, record map[string]any) (any, error) {
	switch t := node.(type) {
	case string:
		out, err := mustache.Render(t, record)
		if err != nil {
			return nil, &InvalidTemplateError{Node: t, Err: err}
		}
		return out, nil

	case []any:
		out := make([]any, len(t))
		for i, sub := range t {
			rendered, err := Render(sub, record)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil

	case map[string]any:
		if _, ok := t[listKey]; ok {
			return renderList(t, record)
		}
		out := make(map[string]any, len(t))
		for key, sub := range t {
			rendered, err := Render(sub, record)
			if err != nil {
				return nil, err
			}
			out[key] = rendered
		}
		return out, nil

	default:
		return nil, &InvalidTemplateError{Node: node}
	}
}

// renderList expands a {"__list": field, "item": template} node into one
// rendered item per element of record[field]. A missing or non-list field
// expands to an empty list.
func renderList(node map[string]any, record map[string]any) (any, error) {
	field, ok := node[listKey].(string)
	if !ok {
		return nil, &InvalidTemplateError{Node: node[listKey]}
	}
	itemTemplate, ok := node[itemKey]
	if !ok {
		return nil, &InvalidTemplateError{Node: node}
	}

	source := reflect.ValueOf(record[field])
	if source.Kind() != reflect.Slice {
		return []any{}, nil
	}

	out := make([]any, 0, source.Len())
	for i := 0; i < source.Len(); i++ {
		rendered, err := Render(itemTemplate, map[string]any{itemKey: source.Index(i).Interface()})
		if err != nil {
			return nil, err
		}
		out = append(out, rendered)
	}
	return out, nil
}

// Validate walks a template without rendering it, compiling every string
// node, so that configuration defects fail at startup rather than during a
// rebuild.
func Validate(node any) error {
	switch t := node.(type) {
	case string:
		if _, err := mustache.ParseString(t); err != nil {
			return &InvalidTemplateError{Node: t, Err: err}
		}
		return nil

	case []any:
		for _, sub := range t {
			if err := Validate(sub); err != nil {
				return err
			}
		}
		return nil

	case map[string]any:
		if _, ok := t[listKey]; ok {
			if _, ok := t[listKey].(string); !ok {
				return &InvalidTemplateError{Node: t[listKey]}
			}
			item, ok := t[itemKey]
			if !ok {
				return &InvalidTemplateError{Node: t}
			}
			return Validate(item)
		}
		for _, sub := range t {
			if err := Validate(sub); err != nil {
				return err
			}
		}
		return nil

	default:
		return &InvalidTemplateError{Node: node}
	}
}
