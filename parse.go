package stix2

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ParseProperties returns the supplied data as a property mapping. Input may
// be a mapping, serialized JSON text (string or []byte), or a readable
// stream. Every backend runs ingested data through here before schema
// validation.
//
// Numeric values decode as json.Number so integer fields survive a
// serialize/parse round trip without float precision loss.
func ParseProperties(data any) (Properties, error) {
	switch src := data.(type) {
	case Properties:
		return src, nil
	case map[string]any:
		return Properties(src), nil
	case string:
		return decodeProperties(strings.NewReader(src))
	case []byte:
		return decodeProperties(bytes.NewReader(src))
	case io.Reader:
		return decodeProperties(src)
	default:
		return nil, fmt.Errorf("cannot parse properties from %T: must be a mapping, string, or reader", data)
	}
}

func decodeProperties(r io.Reader) (Properties, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var props Properties
	if err := dec.Decode(&props); err != nil {
		return nil, fmt.Errorf("decode properties: %w", err)
	}
	return props, nil
}

// Parse ingests data (see ParseProperties) and constructs the record whose
// schema matches the mapping's "type" field. Supplied identifiers and
// timestamps are preserved, so parsing a canonical serialization and
// re-serializing yields the identical text.
func Parse(data any, opts ...Option) (*Record, error) {
	props, err := ParseProperties(data)
	if err != nil {
		return nil, err
	}
	return parseWith(props, buildOptions(opts))
}

// parseWith dispatches a parsed property mapping through already-resolved
// options, so nested construction (bundle members) shares the caller's.
func parseWith(props Properties, o *options) (*Record, error) {
	typeTag, ok := props["type"].(string)
	if !ok || typeTag == "" {
		return nil, fmt.Errorf("cannot identify record: missing or non-string \"type\" field")
	}

	schema, found := o.registry.Lookup(typeTag)
	if !found {
		return nil, fmt.Errorf("no schema registered for type %q", typeTag)
	}
	return construct(schema, props, o)
}
