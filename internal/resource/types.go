package resource

import (
	"fmt"
	"time"

	"github.com/roach88/revstore/internal/ir"
)

// RevisionStatus is the lifecycle state of a revision.
type RevisionStatus string

const (
	// StatusDraft revisions may be amended in place.
	StatusDraft RevisionStatus = "draft"

	// StatusStable revisions are immutable and only extended by children.
	StatusStable RevisionStatus = "stable"
)

// Valid reports whether s is a known status.
func (s RevisionStatus) Valid() bool {
	return s == StatusDraft || s == StatusStable
}

// RevisionInfo describes one stored revision.
//
// UID changes on every physical write, including amendments that leave the
// payload unchanged. RevisionID identifies the content version and stays
// fixed for the lifetime of the revision.
type RevisionInfo struct {
	UID              string         `json:"uid"`
	ResourceID       string         `json:"resource_id"`
	RevisionID       string         `json:"revision_id"`
	ParentRevisionID string         `json:"parent_revision_id,omitempty"`
	SchemaVersion    string         `json:"schema_version,omitempty"`
	DataHash         string         `json:"data_hash,omitempty"`
	Status           RevisionStatus `json:"status"`
	CreatedTime      time.Time      `json:"created_time"`
	CreatedBy        string         `json:"created_by"`
	UpdatedTime      time.Time      `json:"updated_time"`
	UpdatedBy        string         `json:"updated_by"`
}

// Revision is a RevisionInfo plus the codec-encoded payload bytes as they
// are handed to a RevisionStore.
type Revision struct {
	Info RevisionInfo
	Data []byte
}

// Resource pairs a revision with its decoded payload.
// It is constructed on read and never stored as such.
type Resource[T any] struct {
	Info RevisionInfo `json:"info"`
	Data T            `json:"data"`
}

// ResourceMeta is the mutable per-resource record.
type ResourceMeta struct {
	ResourceID         string      `json:"resource_id"`
	CurrentRevisionID  string      `json:"current_revision_id"`
	SchemaVersion      string      `json:"schema_version,omitempty"`
	TotalRevisionCount int         `json:"total_revision_count"`
	CreatedTime        time.Time   `json:"created_time"`
	CreatedBy          string      `json:"created_by"`
	UpdatedTime        time.Time   `json:"updated_time"`
	UpdatedBy          string      `json:"updated_by"`
	IsDeleted          bool        `json:"is_deleted"`
	IndexedData        ir.IRObject `json:"indexed_data"`

	// Seq is incremented on every successful meta write and serves as the
	// compare-and-swap token. Zero means the meta has never been stored.
	Seq int64 `json:"seq"`
}

// Clone returns a deep copy of m.
func (m *ResourceMeta) Clone() *ResourceMeta {
	if m == nil {
		return nil
	}
	out := *m
	out.IndexedData = m.IndexedData.Clone()
	return &out
}

// Meta field names resolvable by search without touching indexed data.
const (
	FieldResourceID         = "resource_id"
	FieldCreatedTime        = "created_time"
	FieldUpdatedTime        = "updated_time"
	FieldCreatedBy          = "created_by"
	FieldUpdatedBy          = "updated_by"
	FieldIsDeleted          = "is_deleted"
	FieldSchemaVersion      = "schema_version"
	FieldCurrentRevisionID  = "current_revision_id"
	FieldTotalRevisionCount = "total_revision_count"
)

// MetaFields lists every meta field name in a stable order.
var MetaFields = []string{
	FieldResourceID,
	FieldCreatedTime,
	FieldUpdatedTime,
	FieldCreatedBy,
	FieldUpdatedBy,
	FieldIsDeleted,
	FieldSchemaVersion,
	FieldCurrentRevisionID,
	FieldTotalRevisionCount,
}

// IsMetaField reports whether name resolves against ResourceMeta.
func IsMetaField(name string) bool {
	for _, f := range MetaFields {
		if f == name {
			return true
		}
	}
	return false
}

// MetaField returns the value of a meta field as it is seen by search.
// Times are rendered with ir.Time; an empty schema version reads as null.
func (m *ResourceMeta) MetaField(name string) (ir.IRValue, bool) {
	switch name {
	case FieldResourceID:
		return ir.IRString(m.ResourceID), true
	case FieldCreatedTime:
		return ir.Time(m.CreatedTime), true
	case FieldUpdatedTime:
		return ir.Time(m.UpdatedTime), true
	case FieldCreatedBy:
		return ir.IRString(m.CreatedBy), true
	case FieldUpdatedBy:
		return ir.IRString(m.UpdatedBy), true
	case FieldIsDeleted:
		return ir.IRBool(m.IsDeleted), true
	case FieldSchemaVersion:
		if m.SchemaVersion == "" {
			return ir.IRNull{}, true
		}
		return ir.IRString(m.SchemaVersion), true
	case FieldCurrentRevisionID:
		return ir.IRString(m.CurrentRevisionID), true
	case FieldTotalRevisionCount:
		return ir.IRInt(m.TotalRevisionCount), true
	default:
		return nil, false
	}
}

// Field resolves a field path: meta fields first, then indexed data.
// The boolean is false when the path is absent.
func (m *ResourceMeta) Field(path string) (ir.IRValue, bool) {
	if v, ok := m.MetaField(path); ok {
		return v, true
	}
	v, ok := m.IndexedData[path]
	return v, ok
}

// FieldType is the declared type of an indexable field.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
	TypeFloat  FieldType = "float"
	TypeBool   FieldType = "bool"
	TypeTime   FieldType = "time"
	TypeList   FieldType = "list"
	TypeMap    FieldType = "map"
	TypeAny    FieldType = "any"
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case TypeString, TypeInt, TypeFloat, TypeBool, TypeTime, TypeList, TypeMap, TypeAny:
		return true
	}
	return false
}

// IndexableField declares a payload path projected into indexed data.
// Path segments are separated by dots and name JSON keys of the payload.
type IndexableField struct {
	Path string    `json:"path" yaml:"path"`
	Type FieldType `json:"type" yaml:"type"`
}

// Validate checks the declaration.
func (f IndexableField) Validate() error {
	if f.Path == "" {
		return Configuration("indexable field path is required")
	}
	if IsMetaField(f.Path) {
		return Configuration("indexable field %q shadows a meta field", f.Path)
	}
	if f.Type != "" && !f.Type.Valid() {
		return Configuration("indexable field %q: unknown type %q", f.Path, f.Type)
	}
	return nil
}

// RefKind distinguishes references to a resource from references to one
// specific revision.
type RefKind string

const (
	RefResource RefKind = "resource"
	RefRevision RefKind = "revision"
)

// OnDelete is the policy applied to dependents when a referenced resource
// is deleted.
type OnDelete string

const (
	Dangling OnDelete = "dangling"
	SetNull  OnDelete = "set_null"
	Cascade  OnDelete = "cascade"
)

// ParseOnDelete parses a policy name. The empty string means Dangling.
func ParseOnDelete(s string) (OnDelete, error) {
	switch OnDelete(s) {
	case "", Dangling:
		return Dangling, nil
	case SetNull:
		return SetNull, nil
	case Cascade:
		return Cascade, nil
	default:
		return "", fmt.Errorf("unknown on_delete policy %q", s)
	}
}

// Relationship is a reference from a field of one resource type to another
// resource type. Relationships are derived once at registration.
type Relationship struct {
	SourceType  string   `json:"source_type"`
	SourceField string   `json:"source_field"`
	TargetType  string   `json:"target_type"`
	Kind        RefKind  `json:"kind"`
	OnDelete    OnDelete `json:"on_delete"`
	Nullable    bool     `json:"nullable"`
	IsList      bool     `json:"is_list"`
}

func (r Relationship) String() string {
	return fmt.Sprintf("%s.%s -> %s (%s, on_delete=%s)", r.SourceType, r.SourceField, r.TargetType, r.Kind, r.OnDelete)
}
