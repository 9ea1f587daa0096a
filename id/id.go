// Package id defines TypeID-based identity types for all Bastion entities.
//
// Every entity uses the same ID struct; the prefix names the entity kind.
// IDs are K-sortable (UUIDv7-based), globally unique and URL-safe, rendered
// as "prefix_suffix" (e.g. "tgrant_01h2xcejqtf2nbrexx3vqjhp41").
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity kind encoded in a TypeID.
type Prefix string

// Entity prefixes.
const (
	PrefixPermission   Prefix = "perm"
	PrefixResourceType Prefix = "rtype"
	PrefixRole         Prefix = "role"
	PrefixAssignment   Prefix = "asgn"
	PrefixGrant        Prefix = "tgrant"
	PrefixPolicy       Prefix = "cpol"
)

// ID is the primary identifier type for all Bastion entities.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new ID with the given prefix. It panics on an invalid
// prefix, which is a programming error.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string into an ID.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses s and checks that its prefix is expected.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}
	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}
	return parsed
}

// PermissionID identifies a permission (prefix "perm").
type PermissionID = ID

// ResourceTypeID identifies a catalog resource type (prefix "rtype").
type ResourceTypeID = ID

// RoleID identifies a role (prefix "role").
type RoleID = ID

// AssignmentID identifies a user→role assignment (prefix "asgn").
type AssignmentID = ID

// GrantID identifies a temporal grant (prefix "tgrant").
type GrantID = ID

// PolicyID identifies a conditional policy (prefix "cpol").
type PolicyID = ID

// NewPermissionID generates a new permission ID.
func NewPermissionID() ID { return New(PrefixPermission) }

// NewResourceTypeID generates a new resource type ID.
func NewResourceTypeID() ID { return New(PrefixResourceType) }

// NewRoleID generates a new role ID.
func NewRoleID() ID { return New(PrefixRole) }

// NewAssignmentID generates a new assignment ID.
func NewAssignmentID() ID { return New(PrefixAssignment) }

// NewGrantID generates a new temporal grant ID.
func NewGrantID() ID { return New(PrefixGrant) }

// NewPolicyID generates a new conditional policy ID.
func NewPolicyID() ID { return New(PrefixPolicy) }

// ParsePermissionID parses s and validates the "perm" prefix.
func ParsePermissionID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPermission) }

// ParseResourceTypeID parses s and validates the "rtype" prefix.
func ParseResourceTypeID(s string) (ID, error) { return ParseWithPrefix(s, PrefixResourceType) }

// ParseRoleID parses s and validates the "role" prefix.
func ParseRoleID(s string) (ID, error) { return ParseWithPrefix(s, PrefixRole) }

// ParseAssignmentID parses s and validates the "asgn" prefix.
func ParseAssignmentID(s string) (ID, error) { return ParseWithPrefix(s, PrefixAssignment) }

// ParseGrantID parses s and validates the "tgrant" prefix.
func ParseGrantID(s string) (ID, error) { return ParseWithPrefix(s, PrefixGrant) }

// ParsePolicyID parses s and validates the "cpol" prefix.
func ParsePolicyID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPolicy) }

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the prefix component of the ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this is the zero value.
func (i ID) IsNil() bool { return !i.valid }

// Strings renders a slice of IDs.
func Strings(ids []ID) []string {
	out := make([]string, len(ids))
	for n, v := range ids {
		out[n] = v.String()
	}
	return out
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}
	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer. Nil is stored as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}
	return i.inner.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
