package tenant

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MaxIdentifierLength is PostgreSQL's NAMEDATALEN - 1.
const MaxIdentifierLength = 63

// DefaultSchema is the shared schema holding the tenant registry only.
const DefaultSchema = "public"

var (
	schemaNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	clientCodePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

	reservedSchemas = map[string]struct{}{
		"public":             {},
		"information_schema": {},
	}
)

// ErrUnsafeIdentifier is returned when a schema name or client code fails the allow-list.
var ErrUnsafeIdentifier = errors.New("unsafe identifier")

// IdentifierError describes which identifier was rejected and why.
type IdentifierError struct {
	Field  string
	Value  string
	Reason string
}

func (e *IdentifierError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *IdentifierError) Unwrap() error {
	return ErrUnsafeIdentifier
}

// ValidateIdentifier checks that name is safe to interpolate into a
// session-configuration or DDL statement. Schema and identifier names cannot be
// bound as query parameters, so this allow-list is the only gate.
func ValidateIdentifier(name string) error {
	switch {
	case name == "":
		return &IdentifierError{Field: "schema_name", Value: name, Reason: "must not be empty"}
	case len(name) > MaxIdentifierLength:
		return &IdentifierError{Field: "schema_name", Value: name, Reason: fmt.Sprintf("must be at most %d characters", MaxIdentifierLength)}
	case !schemaNamePattern.MatchString(name):
		return &IdentifierError{Field: "schema_name", Value: name, Reason: "must start with a lowercase letter and contain only lowercase letters, digits and underscores"}
	}
	return nil
}

// ValidateSchemaName is ValidateIdentifier plus the rules for a tenant-owned
// schema: it must not be a system schema nor the shared default schema.
func ValidateSchemaName(name string) error {
	if err := ValidateIdentifier(name); err != nil {
		return err
	}
	if _, reserved := reservedSchemas[name]; reserved || strings.HasPrefix(name, "pg_") {
		return &IdentifierError{Field: "schema_name", Value: name, Reason: "is reserved"}
	}
	return nil
}

// ValidateClientCode checks a tenant business code.
func ValidateClientCode(code string) error {
	switch {
	case code == "":
		return &IdentifierError{Field: "client_code", Value: code, Reason: "must not be empty"}
	case len(code) > 50:
		return &IdentifierError{Field: "client_code", Value: code, Reason: "must be at most 50 characters"}
	case !clientCodePattern.MatchString(code):
		return &IdentifierError{Field: "client_code", Value: code, Reason: "must contain only lowercase letters, digits, dashes and underscores"}
	}
	return nil
}
