// Package resource defines the revision-controlled data model shared by every
// layer of revstore: revisions, resource metadata, indexable fields,
// relationships between resource types and the error taxonomy.
//
// A resource is identified by a stable resource id. Every physical write
// produces an immutable revision; revisions of one resource form a parent
// chain. ResourceMeta is the single mutable record per resource and holds the
// pointer to the current revision plus the indexed projection used by search.
package resource
