package stix2

import "fmt"

// BundleSpecVersion is the only spec_version a bundle may carry.
const BundleSpecVersion = "2.0"

// bundleSchema describes the bundle envelope: fixed type and spec_version, a
// generated identifier, and an ordered member list. Members keep their
// insertion order and are not deduplicated.
func bundleSchema() *Schema {
	return &Schema{
		Type: "bundle",
		Properties: []PropertySpec{
			{Name: "type", Const: "bundle"},
			{Name: "id", Default: DefaultNewID},
			{Name: "spec_version", Const: BundleSpecVersion},
			{Name: "objects", coerceOpt: coerceObjects},
		},
	}
}

// coerceObjects normalizes bundle members to records, preserving order.
// Members may be records already, or parsed mappings; mappings are
// constructed with the enclosing call's options, so a custom-field allowance
// or substituted clock reaches every member.
func coerceObjects(v any, o *options) (any, error) {
	items, err := toAnySlice(v)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(items))
	for i, item := range items {
		switch member := item.(type) {
		case *Record:
			out[i] = member
		case map[string]any:
			rec, err := parseWith(Properties(member), o)
			if err != nil {
				return nil, fmt.Errorf("objects[%d]: %w", i, err)
			}
			out[i] = rec
		case Properties:
			rec, err := parseWith(member, o)
			if err != nil {
				return nil, fmt.Errorf("objects[%d]: %w", i, err)
			}
			out[i] = rec
		default:
			return nil, fmt.Errorf("objects[%d]: must be a record or mapping, got %T", i, item)
		}
	}
	return out, nil
}

// NewBundle wraps records in a bundle envelope. Member order is preserved.
func NewBundle(objects []*Record, opts ...Option) (*Record, error) {
	props := Properties{}
	if objects != nil {
		props["objects"] = objects
	}
	return New("bundle", props, opts...)
}

// NewBundleProps constructs a bundle from an explicit property mapping, so
// callers can supply id, type or spec_version for validation.
func NewBundleProps(props Properties, opts ...Option) (*Record, error) {
	return New("bundle", props, opts...)
}

// BundleObjects returns the member records of a bundle, in order. Returns
// nil for records that are not bundles or carry no members.
func BundleObjects(bundle *Record) []*Record {
	raw, ok := bundle.Get("objects")
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]*Record, 0, len(items))
	for _, item := range items {
		if rec, ok := item.(*Record); ok {
			out = append(out, rec)
		}
	}
	return out
}
