// Package stix2 models typed, schema-validated, immutable STIX 2.0 domain
// records and their canonical textual form.
//
// # Records
//
// A Record is a frozen set of named property values conforming to the schema
// registered for its type tag. Construction validates and defaults the
// supplied properties in a single pass:
//
//	ind, err := stix2.NewIndicator(stix2.Properties{
//		"labels":  []string{"malicious-activity"},
//		"pattern": "[file:hashes.MD5 = 'd41d8cd98f00b204e9800998ecf8427e']",
//	})
//
// Missing required fields, type/id disagreements, and unrecognized fields are
// all rejected at construction time; nothing is deferred to serialization or
// persistence. Once constructed a Record never changes - a new version of an
// object is a new Record with a later modified timestamp.
//
// # Determinism
//
// Records serialize canonically: keys sorted at every level, 4-space
// indentation, timestamps in the fixed UTC form, strings NFC-normalized.
// Two structurally equal records always produce byte-identical text, which is
// what makes content-addressed hashing and golden-file testing possible.
//
// The clock and identifier generator used for defaulted fields are injectable
// through construction options, so deterministic substitution in tests is a
// first-class capability:
//
//	ind, err := stix2.NewIndicator(props,
//		stix2.WithClock(timestamp.Fixed(instant)),
//		stix2.WithIDGenerator(ident.Sequential()),
//	)
//
// # Storage
//
// The store package and its backends (memstore, filestore, sqlstore) persist
// and query collections of Records; see their documentation.
package stix2
