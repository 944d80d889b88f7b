package stix2

// Built-in STIX 2.0 object schemas.
//
// Each record type is a descriptor in the registry, not a subtype: adding a
// type means registering a Schema. Required properties are declared in the
// order their absence should be reported.

// commonSpecs returns the properties shared by every STIX domain object.
// The type tag pins "type"; "id", "created" and "modified" are generated
// when unset.
func commonSpecs(typeTag string) []PropertySpec {
	return []PropertySpec{
		{Name: "type", Const: typeTag},
		{Name: "id", Default: DefaultNewID},
		{Name: "created", Default: DefaultNow, Coerce: CoerceTimestamp},
		{Name: "modified", Default: DefaultNow, Coerce: CoerceTimestamp},
		{Name: "created_by_ref", Coerce: CoerceReference},
		{Name: "external_references"},
		{Name: "object_marking_refs", Coerce: CoerceReferenceList},
		{Name: "granular_markings"},
		{Name: "revoked"},
	}
}

func sdoSchema(typeTag string, specs ...PropertySpec) *Schema {
	return &Schema{
		Type:         typeTag,
		Properties:   append(commonSpecs(typeTag), specs...),
		CustomPrefix: "x_",
	}
}

func newBuiltinRegistry() *Registry {
	r := NewRegistry()

	r.Register(sdoSchema("attack-pattern",
		PropertySpec{Name: "name", Required: true},
		PropertySpec{Name: "description"},
		PropertySpec{Name: "kill_chain_phases"},
	))

	r.Register(sdoSchema("campaign",
		PropertySpec{Name: "name", Required: true},
		PropertySpec{Name: "description"},
		PropertySpec{Name: "aliases", Coerce: CoerceStringList},
		PropertySpec{Name: "first_seen", Coerce: CoerceTimestamp},
		PropertySpec{Name: "last_seen", Coerce: CoerceTimestamp},
		PropertySpec{Name: "objective"},
	))

	r.Register(sdoSchema("course-of-action",
		PropertySpec{Name: "name", Required: true},
		PropertySpec{Name: "description"},
	))

	r.Register(sdoSchema("identity",
		PropertySpec{Name: "name", Required: true},
		PropertySpec{Name: "identity_class", Required: true},
		PropertySpec{Name: "description"},
		PropertySpec{Name: "sectors", Coerce: CoerceStringList},
		PropertySpec{Name: "contact_information"},
	))

	r.Register(sdoSchema("indicator",
		PropertySpec{Name: "labels", Required: true, Coerce: CoerceStringList},
		PropertySpec{Name: "pattern", Required: true},
		PropertySpec{Name: "name"},
		PropertySpec{Name: "description"},
		PropertySpec{Name: "valid_from", Default: DefaultNow, Coerce: CoerceTimestamp},
		PropertySpec{Name: "valid_until", Coerce: CoerceTimestamp},
	))

	r.Register(sdoSchema("intrusion-set",
		PropertySpec{Name: "name", Required: true},
		PropertySpec{Name: "description"},
		PropertySpec{Name: "aliases", Coerce: CoerceStringList},
		PropertySpec{Name: "first_seen", Coerce: CoerceTimestamp},
		PropertySpec{Name: "last_seen", Coerce: CoerceTimestamp},
		PropertySpec{Name: "goals", Coerce: CoerceStringList},
		PropertySpec{Name: "resource_level"},
		PropertySpec{Name: "primary_motivation"},
		PropertySpec{Name: "secondary_motivations", Coerce: CoerceStringList},
	))

	r.Register(sdoSchema("malware",
		PropertySpec{Name: "labels", Required: true, Coerce: CoerceStringList},
		PropertySpec{Name: "name", Required: true},
		PropertySpec{Name: "description"},
		PropertySpec{Name: "kill_chain_phases"},
	))

	r.Register(sdoSchema("observed-data",
		PropertySpec{Name: "first_observed", Required: true, Coerce: CoerceTimestamp},
		PropertySpec{Name: "last_observed", Required: true, Coerce: CoerceTimestamp},
		PropertySpec{Name: "number_observed", Required: true},
		PropertySpec{Name: "objects", Required: true},
	))

	r.Register(sdoSchema("report",
		PropertySpec{Name: "labels", Required: true, Coerce: CoerceStringList},
		PropertySpec{Name: "name", Required: true},
		PropertySpec{Name: "published", Required: true, Coerce: CoerceTimestamp},
		PropertySpec{Name: "object_refs", Required: true, Coerce: CoerceReferenceList},
		PropertySpec{Name: "description"},
	))

	r.Register(sdoSchema("threat-actor",
		PropertySpec{Name: "labels", Required: true, Coerce: CoerceStringList},
		PropertySpec{Name: "name", Required: true},
		PropertySpec{Name: "description"},
		PropertySpec{Name: "aliases", Coerce: CoerceStringList},
		PropertySpec{Name: "roles", Coerce: CoerceStringList},
		PropertySpec{Name: "goals", Coerce: CoerceStringList},
		PropertySpec{Name: "sophistication"},
		PropertySpec{Name: "resource_level"},
		PropertySpec{Name: "primary_motivation"},
		PropertySpec{Name: "secondary_motivations", Coerce: CoerceStringList},
		PropertySpec{Name: "personal_motivations", Coerce: CoerceStringList},
	))

	r.Register(sdoSchema("tool",
		PropertySpec{Name: "labels", Required: true, Coerce: CoerceStringList},
		PropertySpec{Name: "name", Required: true},
		PropertySpec{Name: "description"},
		PropertySpec{Name: "kill_chain_phases"},
		PropertySpec{Name: "tool_version"},
	))

	r.Register(sdoSchema("vulnerability",
		PropertySpec{Name: "name", Required: true},
		PropertySpec{Name: "description"},
	))

	r.Register(sdoSchema("relationship",
		PropertySpec{Name: "relationship_type", Required: true},
		PropertySpec{Name: "source_ref", Required: true, Coerce: CoerceReference},
		PropertySpec{Name: "target_ref", Required: true, Coerce: CoerceReference},
		PropertySpec{Name: "description"},
	))

	r.Register(bundleSchema())

	return r
}

// NewAttackPattern constructs an attack-pattern record.
func NewAttackPattern(props Properties, opts ...Option) (*Record, error) {
	return New("attack-pattern", props, opts...)
}

// NewCampaign constructs a campaign record.
func NewCampaign(props Properties, opts ...Option) (*Record, error) {
	return New("campaign", props, opts...)
}

// NewCourseOfAction constructs a course-of-action record.
func NewCourseOfAction(props Properties, opts ...Option) (*Record, error) {
	return New("course-of-action", props, opts...)
}

// NewIdentity constructs an identity record.
func NewIdentity(props Properties, opts ...Option) (*Record, error) {
	return New("identity", props, opts...)
}

// NewIndicator constructs an indicator record.
func NewIndicator(props Properties, opts ...Option) (*Record, error) {
	return New("indicator", props, opts...)
}

// NewIntrusionSet constructs an intrusion-set record.
func NewIntrusionSet(props Properties, opts ...Option) (*Record, error) {
	return New("intrusion-set", props, opts...)
}

// NewMalware constructs a malware record.
func NewMalware(props Properties, opts ...Option) (*Record, error) {
	return New("malware", props, opts...)
}

// NewObservedData constructs an observed-data record.
func NewObservedData(props Properties, opts ...Option) (*Record, error) {
	return New("observed-data", props, opts...)
}

// NewReport constructs a report record.
func NewReport(props Properties, opts ...Option) (*Record, error) {
	return New("report", props, opts...)
}

// NewThreatActor constructs a threat-actor record.
func NewThreatActor(props Properties, opts ...Option) (*Record, error) {
	return New("threat-actor", props, opts...)
}

// NewTool constructs a tool record.
func NewTool(props Properties, opts ...Option) (*Record, error) {
	return New("tool", props, opts...)
}

// NewVulnerability constructs a vulnerability record.
func NewVulnerability(props Properties, opts ...Option) (*Record, error) {
	return New("vulnerability", props, opts...)
}

// NewRelationship constructs a relationship edge from source to target.
// Source and target may be identifier strings or records; records are
// coerced to their identifiers.
func NewRelationship(source any, relationshipType string, target any, opts ...Option) (*Record, error) {
	return New("relationship", Properties{
		"relationship_type": relationshipType,
		"source_ref":        source,
		"target_ref":        target,
	}, opts...)
}

// NewRelationshipProps constructs a relationship from an explicit property
// mapping, for callers that carry extra fields such as description.
func NewRelationshipProps(props Properties, opts ...Option) (*Record, error) {
	return New("relationship", props, opts...)
}
