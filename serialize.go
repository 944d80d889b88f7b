package stix2

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/threatline/stix2/timestamp"
)

// Canonical serialization: keys sorted lexicographically at every object
// level, 4-space indentation, arrays in insertion order, timestamps in the
// fixed UTC form, strings NFC-normalized at the boundary, no trailing
// whitespace. Pure and deterministic: structurally equal records produce
// byte-identical text.

const indentStep = "    "

// Serialize renders the record in canonical form.
func (r *Record) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeObject(&buf, r.props, ""); err != nil {
		return nil, fmt.Errorf("serialize %s: %w", r.Type(), err)
	}
	return buf.Bytes(), nil
}

// String renders the canonical form, or an error marker if the record holds
// an unserializable value. Matches fmt.Stringer for convenient printing.
func (r *Record) String() string {
	data, err := r.Serialize()
	if err != nil {
		return fmt.Sprintf("<unserializable %s: %v>", r.Type(), err)
	}
	return string(data)
}

// MarshalJSON renders the canonical form. The canonical text is valid JSON,
// so records nest correctly inside encoding/json output.
func (r *Record) MarshalJSON() ([]byte, error) {
	return r.Serialize()
}

// Hash domain for content-addressed record identity. The version suffix
// enables future algorithm migration.
const hashDomain = "stix2/object/v1"

// Hash returns the SHA-256 content hash of the canonical serialization,
// with domain separation (SHA256(domain + 0x00 + canonical)).
func (r *Record) Hash() (string, error) {
	data, err := r.Serialize()
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(hashDomain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeValue(buf *bytes.Buffer, v any, indent string) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case string:
		return writeString(buf, val)
	case bool:
		buf.WriteString(strconv.FormatBool(val))
		return nil
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
		return nil
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
		return nil
	case float64:
		return writeFloat(buf, val)
	case json.Number:
		buf.WriteString(val.String())
		return nil
	case time.Time:
		return writeString(buf, timestamp.Format(val))
	case *Record:
		return writeObject(buf, val.props, indent)
	case Properties:
		return writeObject(buf, val, indent)
	case map[string]any:
		return writeObject(buf, val, indent)
	case []any:
		return writeArray(buf, val, indent)
	case []string:
		arr := make([]any, len(val))
		for i, s := range val {
			arr[i] = s
		}
		return writeArray(buf, arr, indent)
	case []*Record:
		arr := make([]any, len(val))
		for i, rec := range val {
			arr[i] = rec
		}
		return writeArray(buf, arr, indent)
	default:
		return fmt.Errorf("unsupported type for canonical serialization: %T", v)
	}
}

func writeObject(buf *bytes.Buffer, obj map[string]any, indent string) error {
	if len(obj) == 0 {
		buf.WriteString("{}")
		return nil
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	inner := indent + indentStep
	buf.WriteString("{\n")
	for i, k := range keys {
		if i > 0 {
			buf.WriteString(",\n")
		}
		buf.WriteString(inner)
		if err := writeString(buf, k); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		buf.WriteString(": ")
		if err := writeValue(buf, obj[k], inner); err != nil {
			return fmt.Errorf("value for key %q: %w", k, err)
		}
	}
	buf.WriteString("\n")
	buf.WriteString(indent)
	buf.WriteString("}")
	return nil
}

func writeArray(buf *bytes.Buffer, arr []any, indent string) error {
	if len(arr) == 0 {
		buf.WriteString("[]")
		return nil
	}

	inner := indent + indentStep
	buf.WriteString("[\n")
	for i, elem := range arr {
		if i > 0 {
			buf.WriteString(",\n")
		}
		buf.WriteString(inner)
		if err := writeValue(buf, elem, inner); err != nil {
			return fmt.Errorf("array[%d]: %w", i, err)
		}
	}
	buf.WriteString("\n")
	buf.WriteString(indent)
	buf.WriteString("]")
	return nil
}

// writeString emits a JSON string NFC-normalized at the serialization
// boundary, without HTML escaping (< > & stay literal).
func writeString(buf *bytes.Buffer, s string) error {
	normalized := norm.NFC.String(s)

	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return err
	}

	// json.Encoder appends a trailing newline; drop it.
	out := tmp.Bytes()
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}
	buf.Write(out)
	return nil
}

// writeFloat emits a float the way encoding/json does, so values that
// arrived as float64 and as json.Number render identically.
func writeFloat(buf *bytes.Buffer, f float64) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}
