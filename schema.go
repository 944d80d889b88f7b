package stix2

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/threatline/stix2/timestamp"
)

// DefaultRule names the value generated for a field the caller left unset.
type DefaultRule int

const (
	// DefaultNone leaves an unset optional field absent.
	DefaultNone DefaultRule = iota

	// DefaultNow fills the field with the construction-time instant. Every
	// DefaultNow field in one construction call receives the same capture.
	DefaultNow

	// DefaultNewID fills the field with a fresh type-prefixed identifier.
	DefaultNewID
)

// CoerceFunc normalizes a supplied value into the shape the schema expects,
// e.g. a timestamp string into a time.Time or a Record into its identifier.
type CoerceFunc func(v any) (any, error)

// coerceOptFunc is an option-aware coercion used by builtin schemas whose
// normalization constructs nested records (bundle members): the caller's
// clock, id generator, registry and custom-field allowance carry through.
type coerceOptFunc func(v any, o *options) (any, error)

// PropertySpec describes one field of a record type.
type PropertySpec struct {
	// Name is the field name as it appears in serialized form.
	Name string

	// Required fields are checked in the order they are declared on the
	// Schema; the first absent one determines the reported error.
	Required bool

	// Default generates a value when the field is unset.
	Default DefaultRule

	// Const pins the field to a fixed value. A supplied value must equal it.
	Const any

	// Coerce normalizes supplied values. Nil means accept as-is.
	Coerce CoerceFunc

	// coerceOpt, when set, takes precedence over Coerce and receives the
	// construction options.
	coerceOpt coerceOptFunc
}

// Schema is the declarative field description for one record type.
//
// Fields form a closed set: a supplied name outside Properties is rejected
// unless it carries the CustomPrefix.
type Schema struct {
	// Type is the record's fixed type tag, e.g. "indicator".
	Type string

	// Properties in declaration order. Required-field checks walk this order.
	Properties []PropertySpec

	// CustomPrefix admits extension fields ("x_" per STIX custom properties).
	// Empty means no custom fields are accepted.
	CustomPrefix string
}

// Property returns the spec for name, if declared.
func (s *Schema) Property(name string) (*PropertySpec, bool) {
	for i := range s.Properties {
		if s.Properties[i].Name == name {
			return &s.Properties[i], true
		}
	}
	return nil, false
}

// requiredOrder returns the names of required properties in declared order.
func (s *Schema) requiredOrder() []string {
	var names []string
	for _, p := range s.Properties {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// unexpectedFields returns every supplied name outside the schema's closed
// field set, sorted for stable error output.
func (s *Schema) unexpectedFields(props Properties, allowCustom bool) []string {
	var bad []string
	for name := range props {
		if _, ok := s.Property(name); ok {
			continue
		}
		if allowCustom && s.CustomPrefix != "" && strings.HasPrefix(name, s.CustomPrefix) {
			continue
		}
		bad = append(bad, name)
	}
	sort.Strings(bad)
	return bad
}

// Registry maps type tags to schemas. The zero value is not usable; call
// NewRegistry. A package-level registry pre-populated with the STIX 2.0
// types backs the top-level constructors.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*Schema)}
}

// Register adds or replaces the schema for its type tag.
func (r *Registry) Register(s *Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[s.Type] = s
}

// Lookup returns the schema registered for typeTag.
func (r *Registry) Lookup(typeTag string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[typeTag]
	return s, ok
}

// Types returns all registered type tags, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.schemas))
	for tag := range r.schemas {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// defaultRegistry is built lazily: the builtin schemas reach construction
// helpers that resolve the default registry themselves, so a package-level
// initializer would form a cycle.
var defaultRegistry = sync.OnceValue(newBuiltinRegistry)

// DefaultRegistry returns the registry holding the built-in STIX 2.0 types.
// New types register a schema descriptor here, not a subtype.
func DefaultRegistry() *Registry {
	return defaultRegistry()
}

// Lookup returns the schema for typeTag from the default registry.
func Lookup(typeTag string) (*Schema, bool) {
	return defaultRegistry().Lookup(typeTag)
}

// CoerceTimestamp normalizes timestamp input (time.Time or string) to a UTC
// time.Time via the timestamp utility.
func CoerceTimestamp(v any) (any, error) {
	t, err := timestamp.Parse(v)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CoerceReference substitutes a Record's identifier when a Record is supplied
// where an identifier string is expected.
func CoerceReference(v any) (any, error) {
	switch ref := v.(type) {
	case string:
		return ref, nil
	case *Record:
		return ref.ID(), nil
	default:
		return nil, fmt.Errorf("reference must be an identifier string or a record, got %T", v)
	}
}

// CoerceReferenceList applies CoerceReference to every element of a list.
func CoerceReferenceList(v any) (any, error) {
	items, err := toAnySlice(v)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(items))
	for i, item := range items {
		ref, err := CoerceReference(item)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = ref
	}
	return out, nil
}

// CoerceStringList accepts []string or []any of strings.
func CoerceStringList(v any) (any, error) {
	items, err := toAnySlice(v)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("[%d]: must be a string, got %T", i, item)
		}
		out[i] = s
	}
	return out, nil
}

func toAnySlice(v any) ([]any, error) {
	switch list := v.(type) {
	case []any:
		return list, nil
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, nil
	case []*Record:
		out := make([]any, len(list))
		for i, r := range list {
			out[i] = r
		}
		return out, nil
	default:
		return nil, fmt.Errorf("must be a list, got %T", v)
	}
}

// sharedNow is the single per-construction "now" capture. Defined here so
// schema defaulting and record construction agree on the semantics: one
// capture per construction call, reused by every DefaultNow field.
type sharedNow struct {
	clock timestamp.Clock
	t     time.Time
	set   bool
}

func (n *sharedNow) get() time.Time {
	if !n.set {
		n.t = n.clock.Now()
		n.set = true
	}
	return n.t
}
