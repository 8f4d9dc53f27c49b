/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package migrate

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Recognized migration artifact extensions.
const (
	// SQLExt marks an executable migration payload.
	SQLExt = ".sql"
	// ValidationExt marks an executable pre-flight check paired with a
	// payload of the same base name.
	ValidationExt = ".validation"
)

const (
	nameDelimiter  = "_"
	timestampWidth = 14
	// timestampLayout is the wire format of the filename timestamp.
	timestampLayout = "20060102150405"
)

// Kind distinguishes the two artifact flavors a migration unit can carry.
type Kind string

// Migration artifact kinds.
const (
	KindSQL        Kind = "sql"
	KindValidation Kind = "validation"
)

var availableKinds = map[string]Kind{
	string(KindSQL):        KindSQL,
	string(KindValidation): KindValidation,
}

func kindFromString(s string) (Kind, error) {
	kind, ok := availableKinds[s]
	if !ok {
		return "", fmt.Errorf("invalid migration kind: %s", s)
	}
	return kind, nil
}

// UnmarshalJSON allows decoding string representation of the kind from JSON.
// Implements json.Unmarshaler interface.
func (k *Kind) UnmarshalJSON(data []byte) error {
	kind, err := kindFromString(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// UnmarshalYAML allows decoding from YAML.
// Implements yaml.Unmarshaler interface.
func (k *Kind) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid migration kind: %w", err)
	}
	kind, err := kindFromString(s)
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// UnmarshalText allows decoding from text.
// Implements encoding.TextUnmarshaler interface.
func (k *Kind) UnmarshalText(text []byte) error {
	return k.UnmarshalJSON(text)
}

// String returns the human-readable string representation.
// Implements fmt.Stringer interface.
func (k Kind) String() string {
	return string(k)
}

// MarshalJSON encodes as a string in JSON.
// Implements json.Marshaler interface.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// MarshalYAML encodes as a string in YAML.
// Implements yaml.Marshaler interface.
func (k Kind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

// MarshalText encodes as a string in text.
// Implements encoding.TextMarshaler interface.
func (k *Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParsedName is the strict result of parsing a migration filename.
type ParsedName struct {
	Timestamp   string
	Track       string
	Description string
	Kind        Kind
}

// Migration is one discovered migration unit: an SQL payload plus an optional
// paired validation artifact. Units are immutable once applied and are never
// deleted by the engine.
type Migration struct {
	Filename    string
	Timestamp   string
	Track       string
	Description string
	// SQL is the literal payload, loaded at discovery time.
	SQL string
	// Path is the on-disk location of the payload.
	Path string
	// ValidationPath points to the paired pre-flight artifact, empty when
	// the unit has none.
	ValidationPath string
}

// ParseFilename parses a migration filename into its strict tagged form.
// The timestamp field is not validated here; callers wanting the stricter
// check use ValidateTimestamp separately.
func ParseFilename(filename string) (ParsedName, error) {
	if filename == "" {
		return ParsedName{}, &MalformedNameError{Filename: filename, Reason: "empty filename"}
	}

	var kind Kind
	var base string
	switch {
	case strings.HasSuffix(filename, SQLExt):
		kind, base = KindSQL, strings.TrimSuffix(filename, SQLExt)
	case strings.HasSuffix(filename, ValidationExt):
		kind, base = KindValidation, strings.TrimSuffix(filename, ValidationExt)
	default:
		return ParsedName{}, &MalformedNameError{
			Filename: filename,
			Reason:   fmt.Sprintf("unrecognized extension, want %s or %s", SQLExt, ValidationExt),
		}
	}

	parts := strings.SplitN(base, nameDelimiter, 3)
	if len(parts) < 3 {
		return ParsedName{}, &MalformedNameError{
			Filename: filename,
			Reason:   "want {timestamp}_{track}_{description}",
		}
	}

	return ParsedName{
		Timestamp:   parts[0],
		Track:       parts[1],
		Description: parts[2],
		Kind:        kind,
	}, nil
}

// ValidateTimestamp reports whether s is exactly 14 ASCII digits.
func ValidateTimestamp(s string) bool {
	if len(s) != timestampWidth {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// NewFilename builds a well-formed payload filename for a new migration unit.
// It is the inverse of ParseFilename for the sql kind.
func NewFilename(track, description string, t time.Time) string {
	return t.UTC().Format(timestampLayout) + nameDelimiter + track + nameDelimiter + description + SQLExt
}

// ContentHash returns the hex SHA-256 digest of a payload. It is computed at
// execution time and stored for audit only; already-applied units are never
// re-hashed or re-checked.
func ContentHash(sql string) string {
	sum := sha256.Sum256([]byte(sql))
	return hex.EncodeToString(sum[:])
}
