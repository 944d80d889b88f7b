package stix2

import (
	"fmt"
	"time"

	"github.com/threatline/stix2/ident"
	"github.com/threatline/stix2/timestamp"
)

// Properties is the field mapping supplied to, and held by, a Record.
type Properties map[string]any

// Option adjusts record construction.
type Option func(*options)

type options struct {
	clock       timestamp.Clock
	idgen       ident.Generator
	allowCustom bool
	registry    *Registry
}

func buildOptions(opts []Option) *options {
	o := &options{
		clock:    timestamp.System(),
		idgen:    ident.Random(),
		registry: defaultRegistry(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithClock substitutes the clock used for "now"-defaulted fields.
func WithClock(c timestamp.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithIDGenerator substitutes the identifier generator used for defaulted ids.
func WithIDGenerator(g ident.Generator) Option {
	return func(o *options) { o.idgen = g }
}

// WithAllowCustom admits fields carrying the schema's custom prefix.
func WithAllowCustom() Option {
	return func(o *options) { o.allowCustom = true }
}

// WithRegistry resolves schemas from r instead of the default registry.
func WithRegistry(r *Registry) Option {
	return func(o *options) { o.registry = r }
}

// Record is an immutable, schema-validated unit of domain data.
//
// A Record is frozen at construction: there is no mutation API, and Set
// always fails with an immutability error. Equality is by full field
// content, via the canonical serialization.
type Record struct {
	schema *Schema
	props  Properties
}

// New constructs and freezes a record of the given type from the supplied
// properties, validating against the registered schema.
//
// The validation protocol, in order:
//  1. A supplied "type" must equal the type tag.
//  2. A supplied "id" must carry the "<type>--" prefix.
//  3. Required fields are checked in declared order; the first absent one
//     is the reported error.
//  4. Field names outside the schema fail construction, all listed together.
//  5. Supplied values are coerced (timestamps parsed, record references
//     replaced by their identifiers).
//  6. Defaults are generated: one "now" capture shared by every
//     now-defaulted field, fresh identifiers for id fields.
func New(typeTag string, props Properties, opts ...Option) (*Record, error) {
	o := buildOptions(opts)

	schema, ok := o.registry.Lookup(typeTag)
	if !ok {
		return nil, fmt.Errorf("no schema registered for type %q", typeTag)
	}
	return construct(schema, props, o)
}

func construct(schema *Schema, props Properties, o *options) (*Record, error) {
	if props == nil {
		props = Properties{}
	}

	if supplied, ok := props["type"]; ok && supplied != schema.Type {
		return nil, &ValidationError{
			Code:     ErrCodeTypeMismatch,
			Type:     schema.Type,
			Expected: schema.Type,
		}
	}

	if supplied, ok := props["id"]; ok {
		id, isString := supplied.(string)
		if !isString {
			return nil, &ValidationError{Code: ErrCodeInvalidValue, Type: schema.Type, Field: "id"}
		}
		if err := ident.CheckPrefix(id, schema.Type); err != nil {
			return nil, err
		}
	}

	for _, name := range schema.requiredOrder() {
		if _, ok := props[name]; !ok {
			return nil, &ValidationError{
				Code:  ErrCodeMissingField,
				Type:  schema.Type,
				Field: name,
			}
		}
	}

	if bad := schema.unexpectedFields(props, o.allowCustom); len(bad) > 0 {
		return nil, &ValidationError{
			Code:   ErrCodeUnexpectedFields,
			Type:   schema.Type,
			Fields: bad,
		}
	}

	now := &sharedNow{clock: o.clock}
	frozen := make(Properties, len(schema.Properties))

	for i := range schema.Properties {
		p := &schema.Properties[i]
		supplied, ok := props[p.Name]

		if p.Const != nil {
			if ok && supplied != p.Const {
				return nil, &ValidationError{
					Code:     ErrCodeConstMismatch,
					Type:     schema.Type,
					Field:    p.Name,
					Expected: p.Const,
				}
			}
			frozen[p.Name] = p.Const
			continue
		}

		if ok {
			value := supplied
			switch {
			case p.coerceOpt != nil:
				coerced, err := p.coerceOpt(supplied, o)
				if err != nil {
					return nil, fmt.Errorf("%s field %q: %w", schema.Type, p.Name, err)
				}
				value = coerced
			case p.Coerce != nil:
				coerced, err := p.Coerce(supplied)
				if err != nil {
					return nil, fmt.Errorf("%s field %q: %w", schema.Type, p.Name, err)
				}
				value = coerced
			}
			frozen[p.Name] = value
			continue
		}

		switch p.Default {
		case DefaultNow:
			frozen[p.Name] = now.get()
		case DefaultNewID:
			frozen[p.Name] = o.idgen.NewID(schema.Type)
		}
	}

	// Custom-prefixed fields survived the closed-set check above; carry
	// them through unmodified.
	for name, value := range props {
		if _, declared := schema.Property(name); !declared {
			frozen[name] = value
		}
	}

	return &Record{schema: schema, props: frozen}, nil
}

// Type returns the record's type tag.
func (r *Record) Type() string {
	return r.schema.Type
}

// ID returns the record's identifier.
func (r *Record) ID() string {
	id, _ := r.props["id"].(string)
	return id
}

// Created returns the record's created timestamp, zero if absent.
func (r *Record) Created() time.Time {
	return r.GetTime("created")
}

// Modified returns the record's modified timestamp, zero if absent.
func (r *Record) Modified() time.Time {
	return r.GetTime("modified")
}

// Get is the canonical accessor: it returns the value of the named field and
// whether the field is present. Typed views (ID, Created, GetString, ...)
// are thin wrappers over it.
func (r *Record) Get(name string) (any, bool) {
	v, ok := r.props[name]
	return v, ok
}

// GetString returns the named field as a string, "" if absent or not a string.
func (r *Record) GetString(name string) string {
	s, _ := r.props[name].(string)
	return s
}

// GetTime returns the named field as a time.Time, zero if absent.
func (r *Record) GetTime(name string) time.Time {
	t, _ := r.props[name].(time.Time)
	return t
}

// Set always fails: records are frozen at construction. It exists so dynamic
// callers receive the immutability violation as a typed error rather than
// silently lacking a mutation path.
func (r *Record) Set(name string, value any) error {
	return newImmutableError()
}

// Properties returns a shallow copy of the record's field mapping.
func (r *Record) Properties() Properties {
	out := make(Properties, len(r.props))
	for k, v := range r.props {
		out[k] = v
	}
	return out
}

// Equal reports whether r and other have identical field content, compared
// via the canonical serialization.
func (r *Record) Equal(other *Record) bool {
	if other == nil {
		return false
	}
	a, err := r.Serialize()
	if err != nil {
		return false
	}
	b, err := other.Serialize()
	if err != nil {
		return false
	}
	return string(a) == string(b)
}
