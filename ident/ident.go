// Package ident generates and validates type-prefixed STIX identifiers.
//
// An identifier has the form "<type>--<uuid>", e.g.
// "indicator--01234567-89ab-cdef-0123-456789abcdef". Uniqueness comes from a
// fresh random UUID per call; no ordering between identifiers is implied.
package ident

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Separator joins the type tag and the UUID portion of an identifier.
const Separator = "--"

// Generator produces identifiers for a given type tag. Construction paths
// accept a Generator so tests can substitute deterministic identifiers.
type Generator interface {
	NewID(typeTag string) string
}

// randomGenerator issues identifiers from fresh random UUIDs.
type randomGenerator struct{}

func (randomGenerator) NewID(typeTag string) string {
	return typeTag + Separator + uuid.NewString()
}

// Random returns the default Generator backed by random UUIDs.
func Random() Generator {
	return randomGenerator{}
}

// SequentialGenerator issues counter-suffixed UUIDs for deterministic tests.
// The first identifier for any type ends in ...-000000000001.
type SequentialGenerator struct {
	mu sync.Mutex
	n  uint64
}

// Sequential returns a new deterministic Generator starting at 1.
func Sequential() *SequentialGenerator {
	return &SequentialGenerator{}
}

// NewID implements Generator.
func (g *SequentialGenerator) NewID(typeTag string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s%s00000000-0000-0000-0000-%012x", typeTag, Separator, g.n)
}

// New returns a fresh identifier "<typeTag>--<uuid4>".
func New(typeTag string) string {
	return Random().NewID(typeTag)
}

// PrefixError reports an identifier whose prefix disagrees with the expected
// type tag.
type PrefixError struct {
	ID      string
	TypeTag string
}

// Error implements the error interface.
func (e *PrefixError) Error() string {
	return fmt.Sprintf("%s id values must begin with %q", e.TypeTag, e.TypeTag+Separator)
}

// CheckPrefix verifies that id begins with "<typeTag>--". Returns a
// *PrefixError on disagreement.
func CheckPrefix(id, typeTag string) error {
	if !strings.HasPrefix(id, typeTag+Separator) {
		return &PrefixError{ID: id, TypeTag: typeTag}
	}
	return nil
}

// TypeOf returns the type tag portion of id, or "" if id has no separator.
func TypeOf(id string) string {
	tag, _, ok := strings.Cut(id, Separator)
	if !ok {
		return ""
	}
	return tag
}
